package ledger

import "time"

// Plan is a tenant's subscription tier for the sourcing quota domain.
type Plan string

const (
	// PlanStandard has a hard-capped sourcing allotment. When it runs out
	// the tenant waits for the external billing-cycle reset.
	PlanStandard Plan = "standard"
	// PlanPriority auto-refills its sourcing allotment after a randomized
	// cooldown instead of hard-capping.
	PlanPriority Plan = "priority"
)

// PlanPolicy describes how a plan's sourcing tier behaves.
type PlanPolicy struct {
	// AutoRefill enables the cooldown-gated refill on exhaustion.
	AutoRefill bool
	// RefillAmount is what SourcingRemaining is reset to on refill.
	RefillAmount int64
	// CooldownMin/CooldownMax bound the randomized refill cooldown.
	CooldownMin time.Duration
	CooldownMax time.Duration
}

// DefaultPlans returns the production plan table.
func DefaultPlans() map[Plan]PlanPolicy {
	return map[Plan]PlanPolicy{
		PlanStandard: {},
		PlanPriority: {
			AutoRefill:   true,
			RefillAmount: 500,
			CooldownMin:  10 * time.Minute,
			CooldownMax:  30 * time.Minute,
		},
	}
}

// Account is one tenant's quota row across both accounting domains.
// Invariant: every counter is >= 0 at all times; the insufficiency check
// and the decrement it guards happen inside one store transaction.
type Account struct {
	TenantID int64
	Plan     Plan

	// Sourcing domain.
	SourcingRemaining int64
	// PriorityUnlockAt, when set and in the future, time-gates the
	// sourcing tier regardless of remaining balance.
	PriorityUnlockAt *time.Time

	// Processing domain, consumed in priority order.
	DailyRemaining   int64 // time-boxed daily allotment
	BulkRemaining    int64 // purchased bulk credits
	MeteredRemaining int64 // metered per-unit credits

	// FilterRemaining gates the filtering feature; checked and deducted
	// independently, all-or-nothing.
	FilterRemaining int64

	UpdatedAt time.Time
}
