package anthropic

import (
	"context"

	"github.com/hirelens/hirelens/internal/resilience"
)

// retryingClient decorates a Client with retry on transient failures.
// Retry policy lives here at the collaborator boundary, not inside the
// extraction protocol.
type retryingClient struct {
	inner Client
	cfg   resilience.RetryConfig
}

// NewRetryingClient wraps client so CreateMessage retries transient errors
// with exponential backoff.
func NewRetryingClient(client Client, cfg resilience.RetryConfig) Client {
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("anthropic", "create_message")
	}
	return &retryingClient{inner: client, cfg: cfg}
}

func (c *retryingClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	return resilience.DoVal(ctx, c.cfg, func(ctx context.Context) (*MessageResponse, error) {
		return c.inner.CreateMessage(ctx, req)
	})
}
