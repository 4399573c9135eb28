package anthropic

import (
	"context"

	"github.com/hirelens/hirelens/internal/resilience"
)

// breakerClient decorates a Client with a circuit breaker. It sits inside
// the retry decorator: once the breaker opens, retries see a non-transient
// error and give up immediately instead of sleeping through the backoff
// schedule against a dead API.
type breakerClient struct {
	inner   Client
	breaker *resilience.Breaker
}

// NewBreakerClient wraps client so CreateMessage is rejected with
// resilience.ErrBreakerOpen after a run of transient failures.
func NewBreakerClient(client Client, breaker *resilience.Breaker) Client {
	return &breakerClient{inner: client, breaker: breaker}
}

func (c *breakerClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*MessageResponse, error) {
		return c.inner.CreateMessage(ctx, req)
	})
}
