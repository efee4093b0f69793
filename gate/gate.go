// Package gate implements the per-tenant admission check run before a
// task may execute: a minimum-interval rate limit plus, for worker kinds
// whose marketplace APIs require strict per-tenant sequencing, a
// "currently in flight" mutual-exclusion set.
//
// Rate-limit entries are swept lazily from inside the admission path —
// at most once per SweepInterval, deleting entries idle longer than
// EntryExpiry — so one-shot tenants cannot grow the state without bound
// and no dedicated timer goroutine is needed.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultSweepInterval is how often (at most) the lazy sweep runs.
	DefaultSweepInterval = 5 * time.Minute
	// DefaultEntryExpiry is how long an entry may go untouched before the
	// sweep deletes it.
	DefaultEntryExpiry = 1 * time.Hour
)

// Option configures a Gate.
type Option func(*Gate)

// WithSweepInterval overrides the minimum time between sweeps.
func WithSweepInterval(d time.Duration) Option {
	return func(g *Gate) { g.sweepInterval = d }
}

// WithEntryExpiry overrides the idle time after which entries are swept.
func WithEntryExpiry(d time.Duration) Option {
	return func(g *Gate) { g.expiry = d }
}

// WithClock injects the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// Gate is the admission gate for one worker kind. Safe for concurrent
// use.
type Gate struct {
	kind          string
	store         Store
	sweepInterval time.Duration
	expiry        time.Duration
	now           func() time.Time
	logger        *slog.Logger

	// mu serializes the read-check-write admission when the store does
	// not provide an atomic Admitter.
	mu sync.Mutex

	sweepMu   sync.Mutex
	lastSweep time.Time
}

// New creates a Gate for the given worker kind over the given store.
func New(kind string, store Store, opts ...Option) *Gate {
	g := &Gate{
		kind:          kind,
		store:         store,
		sweepInterval: DefaultSweepInterval,
		expiry:        DefaultEntryExpiry,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// TryAdmit reports whether the tenant may be processed now. On admission
// it records the admission time, so two admissions for one tenant are
// never closer together than minInterval. A rejected caller must
// re-enqueue the task unmodified.
func (g *Gate) TryAdmit(ctx context.Context, tenantID int64, minInterval time.Duration) (bool, error) {
	g.maybeSweep(ctx)

	now := g.now()
	if a, ok := g.store.(Admitter); ok {
		admitted, err := a.TryAdmit(ctx, g.kind, tenantID, minInterval, now)
		if err != nil {
			return false, fmt.Errorf("gate: admit tenant %d: %w", tenantID, err)
		}
		return admitted, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok, err := g.store.LastAdmitted(ctx, g.kind, tenantID)
	if err != nil {
		return false, fmt.Errorf("gate: read entry for tenant %d: %w", tenantID, err)
	}
	if ok && now.Sub(last) < minInterval {
		return false, nil
	}
	if err := g.store.SetLastAdmitted(ctx, g.kind, tenantID, now); err != nil {
		return false, fmt.Errorf("gate: record admission for tenant %d: %w", tenantID, err)
	}
	return true, nil
}

// InFlight reports whether the tenant currently has a task executing.
func (g *Gate) InFlight(ctx context.Context, tenantID int64) (bool, error) {
	inFlight, err := g.store.InFlight(ctx, g.kind, tenantID)
	if err != nil {
		return false, fmt.Errorf("gate: in-flight check for tenant %d: %w", tenantID, err)
	}
	return inFlight, nil
}

// MarkInFlight puts the tenant into the in-flight set. The caller must
// pair it with ClearInFlight on every exit path of the task execution.
func (g *Gate) MarkInFlight(ctx context.Context, tenantID int64) error {
	if err := g.store.AddInFlight(ctx, g.kind, tenantID); err != nil {
		return fmt.Errorf("gate: mark in-flight tenant %d: %w", tenantID, err)
	}
	return nil
}

// ClearInFlight removes the tenant from the in-flight set.
func (g *Gate) ClearInFlight(ctx context.Context, tenantID int64) error {
	if err := g.store.RemoveInFlight(ctx, g.kind, tenantID); err != nil {
		return fmt.Errorf("gate: clear in-flight tenant %d: %w", tenantID, err)
	}
	return nil
}

// maybeSweep deletes stale rate-limit entries, at most once per
// sweepInterval. Sweep failures are logged, never surfaced: a missed
// sweep only delays garbage collection.
func (g *Gate) maybeSweep(ctx context.Context) {
	now := g.now()

	g.sweepMu.Lock()
	if now.Sub(g.lastSweep) < g.sweepInterval {
		g.sweepMu.Unlock()
		return
	}
	g.lastSweep = now
	g.sweepMu.Unlock()

	entries, err := g.store.Entries(ctx, g.kind)
	if err != nil {
		g.logger.Warn("gate sweep: list entries failed",
			slog.String("kind", g.kind),
			slog.String("error", err.Error()),
		)
		return
	}

	swept := 0
	for _, e := range entries {
		if now.Sub(e.LastAdmitted) <= g.expiry {
			continue
		}
		if err := g.store.DeleteEntry(ctx, g.kind, e.TenantID); err != nil {
			g.logger.Warn("gate sweep: delete entry failed",
				slog.String("kind", g.kind),
				slog.Int64("tenant_id", e.TenantID),
				slog.String("error", err.Error()),
			)
			continue
		}
		swept++
	}
	if swept > 0 {
		g.logger.Debug("gate sweep complete",
			slog.String("kind", g.kind),
			slog.Int("swept", swept),
		)
	}
}
