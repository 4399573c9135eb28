package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/hirelens/hirelens/internal/extract"
	"github.com/hirelens/hirelens/internal/pipeline"
	"github.com/hirelens/hirelens/internal/resilience"
	"github.com/hirelens/hirelens/internal/scrape"
	"github.com/hirelens/hirelens/internal/store"
	anthropicpkg "github.com/hirelens/hirelens/pkg/anthropic"
	"github.com/hirelens/hirelens/pkg/firecrawl"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "hirelens.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initOrchestrator wires the full pipeline: scraping client, retrying model
// client, extractor, and store. The store is migrated before use.
func initOrchestrator(ctx context.Context) (*pipeline.Orchestrator, store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	firecrawlClient := firecrawl.NewClient(cfg.Firecrawl.Key,
		firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL),
		firecrawl.WithTimeout(time.Duration(cfg.Firecrawl.TimeoutSecs)*time.Second),
	)
	fetcher := scrape.NewFirecrawlFetcher(firecrawlClient)

	retryCfg := resilience.DefaultRetryConfig()
	if cfg.Anthropic.RetryAttempts > 0 {
		retryCfg.MaxAttempts = cfg.Anthropic.RetryAttempts
	}
	anthropicClient := anthropicpkg.NewRetryingClient(
		anthropicpkg.NewBreakerClient(
			anthropicpkg.NewClient(cfg.Anthropic.Key),
			resilience.NewBreaker(resilience.DefaultBreakerConfig("anthropic")),
		),
		retryCfg,
	)

	extractor := extract.NewExtractor(anthropicClient, extract.Config{
		Model:            cfg.Anthropic.Model,
		MaxTokens:        int64(cfg.Anthropic.MaxTokens),
		ExtractionBudget: cfg.Pipeline.ExtractionBudget,
		ValidationBudget: cfg.Pipeline.ValidationBudget,
	})

	return pipeline.NewOrchestrator(fetcher, extractor, st, cfg.Pipeline), st, nil
}
