// Package ledger implements the transactional, multi-tier quota
// accounting behind sourcing and processing workers.
//
// Two independent operations exist, both atomic per tenant:
//
//   - CheckAndDeductSourcing: a single tier, time-gated for priority
//     plans, with randomized-cooldown auto-refill on exhaustion.
//   - CheckAndDeductProcessing: three tiers consumed in fixed priority
//     order (daily, bulk, metered) plus an all-or-nothing feature-gated
//     filter counter. The metered tier's demand is a randomized derived
//     quantity, not the raw unit count.
//
// Rejections are returned as *QuotaError values carrying an HTTP-style
// status hint; only persistence failures surface as ordinary errors.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/channelport/courier/hook"
	"github.com/channelport/courier/id"
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithPlans overrides the plan policy table.
func WithPlans(plans map[Plan]PlanPolicy) Option {
	return func(l *Ledger) { l.plans = plans }
}

// WithCosts overrides the metered feature cost table.
func WithCosts(costs CostTable) Option {
	return func(l *Ledger) { l.costs = costs }
}

// WithRand injects the random source used for refill cooldowns and
// metered cost draws, so tests can substitute a deterministic source.
func WithRand(src rand.Source) Option {
	return func(l *Ledger) { l.rng = newRNG(src) }
}

// WithClock injects the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithHooks attaches a lifecycle hook registry; deductions and refills
// are emitted through it.
func WithHooks(h *hook.Registry) Option {
	return func(l *Ledger) { l.hooks = h }
}

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) { l.logger = log }
}

// Ledger performs quota accounting over a Store. Safe for concurrent
// use.
type Ledger struct {
	store  Store
	plans  map[Plan]PlanPolicy
	costs  CostTable
	rng    *rng
	now    func() time.Time
	hooks  *hook.Registry
	logger *slog.Logger
}

// New creates a Ledger over the given store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		plans:  DefaultPlans(),
		costs:  DefaultCosts(),
		rng:    newRNG(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// CheckAndDeductSourcing debits units from the tenant's sourcing tier.
//
// A nil return means the deduction committed. A *QuotaError return means
// the request was rejected; for priority plans an exhausted tier is
// refilled for future requests while the current one still fails. Any
// other error is a persistence failure and nothing changed.
func (l *Ledger) CheckAndDeductSourcing(ctx context.Context, tenantID int64, units int64) error {
	if units <= 0 {
		return fmt.Errorf("ledger: sourcing units must be positive, got %d", units)
	}

	var (
		rej       *QuotaError
		deducted  bool
		refilled  bool
		refillAmt int64
		unlockAt  time.Time
	)

	err := l.store.WithAccount(ctx, tenantID, func(a *Account) error {
		now := l.now()
		pol := l.plans[a.Plan]

		if units <= a.SourcingRemaining {
			// Priority tiers are time-gated, not just balance-gated: a
			// still-cooling tier rejects even with sufficient balance.
			if a.PriorityUnlockAt != nil && a.PriorityUnlockAt.After(now) {
				rej = throttled(tenantID, TierSourcing, a.PriorityUnlockAt.Sub(now), "priority tier cooling down")
				return nil
			}
			a.SourcingRemaining -= units
			deducted = true
			return nil
		}

		if !pol.AutoRefill {
			rej = exceeded(tenantID, TierSourcing, fmt.Sprintf("requested %d, %d remaining", units, a.SourcingRemaining))
			return nil
		}

		if a.PriorityUnlockAt == nil || !a.PriorityUnlockAt.After(now) {
			// Refill for future requests; the current one still fails.
			cooldown := time.Duration(l.rng.between(int64(pol.CooldownMin), int64(pol.CooldownMax)))
			a.SourcingRemaining = pol.RefillAmount
			t := now.Add(cooldown)
			a.PriorityUnlockAt = &t

			refilled = true
			refillAmt = pol.RefillAmount
			unlockAt = t
			rej = throttled(tenantID, TierSourcing, cooldown, "tier exhausted, refilled for later")
			return nil
		}

		rej = throttled(tenantID, TierSourcing, a.PriorityUnlockAt.Sub(now), "tier exhausted and cooling down")
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger: sourcing deduction for tenant %d: %w", tenantID, err)
	}

	if deducted {
		l.logUsage(ctx, tenantID, DomainSourcing, TierSourcing, EventDeduct, units)
		l.emitDeducted(ctx, tenantID, DomainSourcing, TierSourcing, units)
	}
	if refilled {
		l.logUsage(ctx, tenantID, DomainSourcing, TierSourcing, EventRefill, refillAmt)
		if l.hooks != nil {
			l.hooks.EmitQuotaRefilled(ctx, tenantID, refillAmt, unlockAt)
		}
	}
	if rej != nil {
		return rej
	}
	return nil
}

// ProcessingRequest describes one processing-domain deduction.
type ProcessingRequest struct {
	// Count is the number of items to process.
	Count int64
	// Features are the capability flags enabled for this request.
	Features []Feature
}

func (r ProcessingRequest) hasFilter() bool {
	return slices.Contains(r.Features, FeatureFilter)
}

// CheckAndDeductProcessing debits the processing tiers for req.Count
// items: daily first, then bulk, with the metered tier absorbing the
// remainder at a randomized per-unit, per-feature cost. The filter
// counter, when the filter feature is enabled, must cover the full count
// or the whole operation rejects before any deduction. No partial
// deduction across tiers ever survives a downstream insufficiency.
func (l *Ledger) CheckAndDeductProcessing(ctx context.Context, tenantID int64, req ProcessingRequest) error {
	if req.Count <= 0 {
		return fmt.Errorf("ledger: processing count must be positive, got %d", req.Count)
	}

	var (
		rej     *QuotaError
		touched []touchedTier
	)

	err := l.store.WithAccount(ctx, tenantID, func(a *Account) error {
		touched = touched[:0] // fn may be retried by the store

		if req.hasFilter() && a.FilterRemaining < req.Count {
			rej = exceeded(tenantID, TierFilter, fmt.Sprintf("need %d filter credits, %d remaining", req.Count, a.FilterRemaining))
			return nil
		}

		remaining := req.Count
		fromDaily := min(remaining, a.DailyRemaining)
		remaining -= fromDaily
		fromBulk := min(remaining, a.BulkRemaining)
		remaining -= fromBulk

		var demand int64
		if remaining > 0 {
			demand = l.meteredDemand(remaining, req.Features)
			if a.MeteredRemaining < demand {
				rej = exceeded(tenantID, TierMetered, fmt.Sprintf("need %d metered credits, %d remaining", demand, a.MeteredRemaining))
				return nil
			}
		}

		// All checks passed; apply every deduction together.
		if req.hasFilter() {
			a.FilterRemaining -= req.Count
			touched = append(touched, touchedTier{TierFilter, req.Count})
		}
		if fromDaily > 0 {
			a.DailyRemaining -= fromDaily
			touched = append(touched, touchedTier{TierDaily, fromDaily})
		}
		if fromBulk > 0 {
			a.BulkRemaining -= fromBulk
			touched = append(touched, touchedTier{TierBulk, fromBulk})
		}
		if demand > 0 {
			a.MeteredRemaining -= demand
			touched = append(touched, touchedTier{TierMetered, demand})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger: processing deduction for tenant %d: %w", tenantID, err)
	}
	if rej != nil {
		return rej
	}

	for _, t := range touched {
		l.logUsage(ctx, tenantID, DomainProcessing, t.tier, EventDeduct, t.amount)
		l.emitDeducted(ctx, tenantID, DomainProcessing, t.tier, t.amount)
	}
	// Cumulative counter, best-effort: its failure must not undo the
	// already-committed deduction.
	if err := l.store.AddItemsProcessed(ctx, tenantID, req.Count); err != nil {
		l.logger.Warn("items-processed counter update failed",
			slog.Int64("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

type touchedTier struct {
	tier   Tier
	amount int64
}

// meteredDemand sums, per unit, one bounded random draw per enabled
// metered feature.
func (l *Ledger) meteredDemand(units int64, features []Feature) int64 {
	var demand int64
	for range units {
		for _, f := range features {
			cr, ok := l.costs[f]
			if !ok {
				continue
			}
			demand += l.rng.between(cr.Min, cr.Max)
		}
	}
	return demand
}

func (l *Ledger) logUsage(ctx context.Context, tenantID int64, domain Domain, tier Tier, event Event, amount int64) {
	e := &UsageEntry{
		ID:       id.NewUsageID(),
		TenantID: tenantID,
		Domain:   domain,
		Tier:     tier,
		Event:    event,
		Amount:   amount,
		At:       l.now(),
	}
	if err := l.store.AppendUsage(ctx, e); err != nil {
		l.logger.Warn("usage log append failed",
			slog.Int64("tenant_id", tenantID),
			slog.String("domain", string(domain)),
			slog.String("tier", string(tier)),
			slog.String("error", err.Error()),
		)
	}
}

func (l *Ledger) emitDeducted(ctx context.Context, tenantID int64, domain Domain, tier Tier, amount int64) {
	if l.hooks != nil {
		l.hooks.EmitQuotaDeducted(ctx, tenantID, string(domain), string(tier), amount)
	}
}
