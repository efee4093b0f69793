package gate

import (
	"context"
	"time"
)

// Entry is one tenant's rate-limit record for one worker kind.
type Entry struct {
	TenantID     int64
	LastAdmitted time.Time
}

// Store is the keyed state behind a Gate. State is keyed by (worker
// kind, tenant); implementations may back it with an in-process map, a
// Redis hash, or the same database as the quota ledger — the gate places
// no requirement on locality.
type Store interface {
	// LastAdmitted returns the tenant's last admission time for the kind.
	// ok is false when no entry exists.
	LastAdmitted(ctx context.Context, kind string, tenantID int64) (t time.Time, ok bool, err error)

	// SetLastAdmitted records an admission time for the tenant.
	SetLastAdmitted(ctx context.Context, kind string, tenantID int64, t time.Time) error

	// DeleteEntry removes the tenant's rate-limit entry.
	DeleteEntry(ctx context.Context, kind string, tenantID int64) error

	// Entries lists all rate-limit entries for the kind. Used by the
	// stale-entry sweep.
	Entries(ctx context.Context, kind string) ([]Entry, error)

	// AddInFlight marks the tenant as currently processing for the kind.
	AddInFlight(ctx context.Context, kind string, tenantID int64) error

	// RemoveInFlight clears the tenant's in-flight marker.
	RemoveInFlight(ctx context.Context, kind string, tenantID int64) error

	// InFlight reports whether the tenant currently has a task executing.
	InFlight(ctx context.Context, kind string, tenantID int64) (bool, error)
}

// Admitter is an optional Store upgrade for backends that can perform
// the read-check-write admission as a single atomic operation (a Lua
// script on Redis, for example). When the store implements Admitter the
// Gate delegates to it, so the no-double-admission property holds even
// with multiple worker processes sharing the store. Stores without
// Admitter are serialized by the Gate's own mutex, which is sufficient
// in-process.
type Admitter interface {
	// TryAdmit returns true and records now as the admission time iff at
	// least minInterval has elapsed since the tenant's last admission.
	TryAdmit(ctx context.Context, kind string, tenantID int64, minInterval time.Duration, now time.Time) (bool, error)
}
