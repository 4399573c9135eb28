package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirelens/hirelens/internal/resilience"
)

func TestScrape_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scrape", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req ScrapeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://example.com/jobs/1", req.URL)
		assert.Equal(t, []string{"markdown", "html"}, req.Formats)

		json.NewEncoder(w).Encode(ScrapeResponse{
			Success: true,
			Data: PageData{
				Markdown: "# Senior Engineer\n\nResponsibilities...",
				HTML:     "<h1>Senior Engineer</h1>",
				Metadata: Metadata{
					Title:      "Senior Engineer - Acme",
					SourceURL:  "https://example.com/jobs/1",
					StatusCode: 200,
				},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))

	resp, err := c.Scrape(context.Background(), ScrapeRequest{
		URL:     "https://example.com/jobs/1",
		Formats: []string{"markdown", "html"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "# Senior Engineer\n\nResponsibilities...", resp.Data.Markdown)
	assert.Equal(t, 200, resp.Data.Metadata.StatusCode)
	assert.Equal(t, "Senior Engineer - Acme", resp.Data.Metadata.Title)
}

func TestScrape_UpstreamStatusCode(t *testing.T) {
	// Firecrawl succeeds (HTTP 200) but the target page was a 404; the
	// status surfaces in metadata, not as an APIError.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ScrapeResponse{
			Success: true,
			Data: PageData{
				Markdown: "404 Page Not Found",
				Metadata: Metadata{StatusCode: 404},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))

	resp, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://example.com/gone"})
	require.NoError(t, err)
	assert.Equal(t, 404, resp.Data.Metadata.StatusCode)
}

func TestScrape_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":"insufficient credits"}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))

	_, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://example.com"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "insufficient credits")
}

func TestScrape_RateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))

	_, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://example.com"})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
}

func TestScrape_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))

	_, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://example.com"})
	assert.Error(t, err)
}

func TestScrape_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Scrape(ctx, ScrapeRequest{URL: "https://example.com"})
	assert.Error(t, err)
}
