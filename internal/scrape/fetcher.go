// Package scrape fetches raw documents through the external scraping service.
package scrape

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hirelens/hirelens/internal/model"
)

// Fetcher retrieves one URL and returns its raw content. Implementations must
// bound each call with a timeout; a timeout is an ordinary fetch failure.
type Fetcher interface {
	Fetch(ctx context.Context, url string, kind model.DocumentKind) (*model.RawDocument, error)
	Name() string
}

// FetchError reports a failed fetch attempt. Per-URL fatal: the pipeline
// records the failure and moves on without aborting the batch.
type FetchError struct {
	URL   string
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("scrape: fetch %s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// atsDomains maps hosting-domain substrings to applicant tracking system
// names. Knowing the platform helps downstream consumers group postings by
// source; it has no effect on extraction itself.
var atsDomains = []struct {
	fragment string
	platform string
}{
	{"greenhouse.io", "greenhouse"},
	{"lever.co", "lever"},
	{"ashbyhq.com", "ashby"},
	{"workday.com", "workday"},
	{"successfactors.com", "successfactors"},
	{"icims.com", "icims"},
	{"bamboohr.com", "bamboohr"},
}

// DetectATSPlatform identifies the applicant tracking system from the URL.
// Returns "unknown" when no known platform matches.
func DetectATSPlatform(url string) string {
	for _, d := range atsDomains {
		if strings.Contains(url, d.fragment) {
			return d.platform
		}
	}
	return "unknown"
}

// NewRawDocument assembles the immutable fetch result handed to the pipeline.
func NewRawDocument(url string, kind model.DocumentKind, title, markdown, markup string, status int, meta map[string]any) *model.RawDocument {
	return &model.RawDocument{
		SourceURL:   url,
		Kind:        kind,
		FetchedAt:   time.Now().UTC(),
		Title:       title,
		RawText:     markdown,
		RawMarkup:   markup,
		Metadata:    meta,
		ATSPlatform: DetectATSPlatform(url),
		HTTPStatus:  status,
	}
}
