package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/channelport/courier/backoff"
)

// DefaultMaxAttempts bounds the retry loop, counting the first call.
const DefaultMaxAttempts = 3

// InvokeOption configures Invoke.
type InvokeOption func(*invoker)

// WithMaxAttempts sets the total call budget, counting the first call.
func WithMaxAttempts(n int) InvokeOption {
	return func(iv *invoker) { iv.maxAttempts = n }
}

// WithBackoff sets the delay strategy between attempts.
func WithBackoff(s backoff.Strategy) InvokeOption {
	return func(iv *invoker) { iv.strategy = s }
}

// withSleep replaces the wait primitive in tests.
func withSleep(fn func(ctx context.Context, d time.Duration) error) InvokeOption {
	return func(iv *invoker) { iv.sleep = fn }
}

type invoker struct {
	maxAttempts int
	strategy    backoff.Strategy
	sleep       func(ctx context.Context, d time.Duration) error
}

// Invoke calls the client with a bounded retry loop. Transient errors
// and throttles are retried up to the attempt budget with backoff; a
// server RetryAfter hint overrides a shorter computed delay. Permanent
// errors return immediately. Once the budget is spent the last error
// is wrapped in ErrRetriesExhausted.
func Invoke(ctx context.Context, c Client, req *Request, opts ...InvokeOption) (*Result, error) {
	iv := &invoker{
		maxAttempts: DefaultMaxAttempts,
		strategy:    backoff.DefaultStrategy(),
		sleep:       sleepCtx,
	}
	for _, o := range opts {
		o(iv)
	}
	if iv.maxAttempts < 1 {
		iv.maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= iv.maxAttempts; attempt++ {
		res, err := c.Call(ctx, req)
		if err == nil {
			return res, nil
		}
		if IsPermanent(err) {
			return nil, err
		}
		lastErr = err

		if attempt == iv.maxAttempts {
			break
		}

		delay := iv.strategy.Delay(attempt)
		var te *ThrottledError
		if errors.As(err, &te) && te.RetryAfter > delay {
			delay = te.RetryAfter
		}
		if err := iv.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, iv.maxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
