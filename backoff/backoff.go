// Package backoff provides retry delay strategies for outbound
// marketplace calls. Strategies are safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Exponential doubles the delay each attempt.
// Delay = min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ExponentialWithJitter applies full jitter to an exponential base:
// a random duration in [0, min(Initial * 2^(attempt-1), Max)]. Full
// jitter keeps many tenants retrying a throttled marketplace from
// lining up on the same schedule.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewExponentialWithJitter creates an exponential backoff with full
// jitter. src seeds the jitter; pass nil for a time-seeded source.
func NewExponentialWithJitter(initial, maxDelay time.Duration, src rand.Source) *ExponentialWithJitter {
	if src == nil {
		src = rand.NewPCG(uint64(time.Now().UnixNano()), uint64(time.Now().UnixNano()>>32))
	}
	return &ExponentialWithJitter{
		Initial: initial,
		Max:     maxDelay,
		rnd:     rand.New(src),
	}
}

// Delay returns a random duration in [0, min(Initial * 2^(attempt-1), Max)].
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	base := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	e.mu.Lock()
	f := e.rnd.Float64()
	e.mu.Unlock()
	return time.Duration(f * base)
}

// DefaultStrategy returns the backoff used for transient marketplace
// failures: exponential with full jitter, 1s initial and 30s max.
func DefaultStrategy() Strategy {
	return NewExponentialWithJitter(1*time.Second, 30*time.Second, nil)
}
