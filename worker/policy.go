package worker

import (
	"time"

	"github.com/channelport/courier/task"
)

// Default policy values applied by normalize.
const (
	DefaultConcurrency  = 5
	DefaultPopTimeout   = 5 * time.Second
	DefaultIdleDelay    = time.Second
	DefaultRequeueDelay = 250 * time.Millisecond
)

// Policy is the per-kind configuration that turns the generic engine
// into one of the concrete workers. One Loop runs per Policy.
type Policy struct {
	// Kind selects the task body and names the gate state.
	Kind task.Kind

	// Queue is the name of the work queue to poll. Empty defaults to
	// the kind string.
	Queue string

	// MinInterval is the per-tenant admission interval enforced by the
	// gate. Zero disables rate limiting for the kind.
	MinInterval time.Duration

	// Sequential enforces per-tenant mutual exclusion: a tenant's next
	// task is not admitted while one is in flight. Required by
	// marketplace registration APIs that reject concurrent writes.
	Sequential bool

	// Concurrency is the dispatcher ceiling for the kind.
	Concurrency int

	// Batch, when above 1, pops up to Batch tasks per poll using the
	// non-blocking batch pop. At 0 or 1 the loop uses blocking pops.
	Batch int

	// PopTimeout bounds each blocking pop so the loop can observe
	// shutdown.
	PopTimeout time.Duration

	// IdleDelay is the pause after an empty batch poll or a pop error.
	IdleDelay time.Duration

	// RequeueDelay is the pause after a gate rejection. It is a
	// worker-level breather, not per-task backoff: the rejected task is
	// already back at the queue tail.
	RequeueDelay time.Duration
}

// normalize fills zero fields with defaults.
func (p Policy) normalize() Policy {
	if p.Queue == "" {
		p.Queue = string(p.Kind)
	}
	if p.Concurrency < 1 {
		p.Concurrency = DefaultConcurrency
	}
	if p.PopTimeout <= 0 {
		p.PopTimeout = DefaultPopTimeout
	}
	if p.IdleDelay <= 0 {
		p.IdleDelay = DefaultIdleDelay
	}
	if p.RequeueDelay <= 0 {
		p.RequeueDelay = DefaultRequeueDelay
	}
	return p
}
