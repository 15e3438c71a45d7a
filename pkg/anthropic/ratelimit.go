package anthropic

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimitedClient wraps a Client with a token-bucket rate limiter so
// concurrent section workers stay under the account's request ceiling.
type rateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// NewRateLimited wraps client with a limiter of requestsPerSecond.
// A non-positive rate returns the client unwrapped.
func NewRateLimited(client Client, requestsPerSecond float64, burst int) Client {
	if requestsPerSecond <= 0 {
		return client
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimitedClient{
		inner:   client,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

func (c *rateLimitedClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.CreateMessage(ctx, req)
}
