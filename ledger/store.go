package ledger

import (
	"context"
	"time"

	"github.com/channelport/courier/id"
)

// Domain separates the two independent accounting operations.
type Domain string

const (
	DomainSourcing   Domain = "sourcing"
	DomainProcessing Domain = "processing"
)

// Tier names the quota buckets touched by deductions.
type Tier string

const (
	TierSourcing Tier = "sourcing"
	TierDaily    Tier = "daily"
	TierBulk     Tier = "bulk"
	TierMetered  Tier = "metered"
	TierFilter   Tier = "filter"
)

// Event distinguishes usage-log entry types.
type Event string

const (
	EventDeduct Event = "deduct"
	EventRefill Event = "refill"
)

// UsageEntry is one append-only usage-log row.
type UsageEntry struct {
	ID       id.UsageID
	TenantID int64
	Domain   Domain
	Tier     Tier
	Event    Event
	Amount   int64
	At       time.Time
}

// Store is the persistence contract for quota accounts.
//
// WithAccount is the one place multi-statement atomicity is mandatory:
// two concurrent requests for the same tenant must never both pass an
// insufficient-balance check. Usage logs and the cumulative processed
// counter are best-effort, outside the accounting transaction.
type Store interface {
	// WithAccount loads the tenant's account, runs fn against it while
	// holding the row, and persists the (possibly mutated) account iff fn
	// returns nil. A non-nil error from fn rolls the account back
	// unchanged and is returned as-is.
	WithAccount(ctx context.Context, tenantID int64, fn func(a *Account) error) error

	// AppendUsage appends one usage-log entry.
	AppendUsage(ctx context.Context, e *UsageEntry) error

	// AddItemsProcessed bumps the tenant's cumulative items-processed
	// counter by n.
	AddItemsProcessed(ctx context.Context, tenantID int64, n int64) error
}
