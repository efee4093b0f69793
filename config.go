package courier

import "time"

// Config holds engine-level configuration shared by all worker loops.
// Per-worker behaviour (queue name, rate interval, concurrency ceiling)
// lives in worker.Policy.
type Config struct {
	// ShutdownTimeout is the maximum time to wait for in-flight tasks to
	// drain on graceful shutdown. Running tasks are never cancelled; after
	// the timeout the process gives up waiting and exits.
	ShutdownTimeout time.Duration

	// SweepInterval is how often (at most) the admission gate sweeps stale
	// rate-limit entries. The sweep runs lazily inside the admission path,
	// not on a dedicated timer.
	SweepInterval time.Duration

	// EntryExpiry is how long a tenant's rate-limit entry may go untouched
	// before the sweep deletes it.
	EntryExpiry time.Duration
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		ShutdownTimeout: 30 * time.Second,
		SweepInterval:   5 * time.Minute,
		EntryExpiry:     1 * time.Hour,
	}
}
