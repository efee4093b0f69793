package remote

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limited wraps a Client with a client-side token bucket so a burst of
// admitted tasks cannot exceed the external system's tolerated request
// rate even before the server starts returning 429s.
type Limited struct {
	inner   Client
	limiter *rate.Limiter
}

var _ Client = (*Limited)(nil)

// Limit wraps c with a token bucket of r requests per second and the
// given burst.
func Limit(c Client, r rate.Limit, burst int) *Limited {
	return &Limited{
		inner:   c,
		limiter: rate.NewLimiter(r, burst),
	}
}

// Call waits for a token, then delegates.
func (l *Limited) Call(ctx context.Context, req *Request) (*Result, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("remote: limiter wait: %w", err)
	}
	return l.inner.Call(ctx, req)
}
