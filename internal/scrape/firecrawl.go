package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hirelens/hirelens/internal/model"
	"github.com/hirelens/hirelens/internal/resilience"
	"github.com/hirelens/hirelens/pkg/firecrawl"
)

// FirecrawlFetcher implements Fetcher over the Firecrawl scrape API. A
// circuit breaker guards the upstream: a run of transient scrape failures
// opens it so the rest of a batch fails fast instead of retrying every URL
// against a dead service.
type FirecrawlFetcher struct {
	client  firecrawl.Client
	breaker *resilience.Breaker
}

// NewFirecrawlFetcher creates a FirecrawlFetcher from a Firecrawl client.
func NewFirecrawlFetcher(client firecrawl.Client) *FirecrawlFetcher {
	return &FirecrawlFetcher{
		client:  client,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerConfig("firecrawl")),
	}
}

// Name implements Fetcher.
func (f *FirecrawlFetcher) Name() string { return "firecrawl" }

// Fetch scrapes one URL. Markdown is the primary text; raw HTML is kept for
// structural quality signals on forms. A non-2xx upstream page status is not
// a fetch failure; it surfaces on the document for the quality gate.
func (f *FirecrawlFetcher) Fetch(ctx context.Context, url string, kind model.DocumentKind) (*model.RawDocument, error) {
	formats := []string{"markdown"}
	if kind == model.KindForm {
		formats = append(formats, "html")
	}

	resp, err := resilience.ExecuteVal(ctx, f.breaker, func(ctx context.Context) (*firecrawl.ScrapeResponse, error) {
		return f.client.Scrape(ctx, firecrawl.ScrapeRequest{
			URL:     url,
			Formats: formats,
		})
	})
	if err != nil {
		return nil, &FetchError{URL: url, Cause: err}
	}
	if !resp.Success {
		return nil, &FetchError{URL: url, Cause: eris.New("scrape not successful")}
	}

	zap.L().Debug("fetched document",
		zap.String("url", url),
		zap.String("kind", string(kind)),
		zap.Int("status", resp.Data.Metadata.StatusCode),
		zap.Int("chars", len(resp.Data.Markdown)),
	)

	meta := map[string]any{
		"title":       resp.Data.Metadata.Title,
		"description": resp.Data.Metadata.Description,
		"http_status": resp.Data.Metadata.StatusCode,
	}

	return NewRawDocument(url, kind,
		resp.Data.Metadata.Title,
		resp.Data.Markdown,
		resp.Data.HTML,
		resp.Data.Metadata.StatusCode,
		meta,
	), nil
}
