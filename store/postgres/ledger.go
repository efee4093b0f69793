package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/channelport/courier"
	"github.com/channelport/courier/ledger"
)

// WithAccount loads the tenant's account under SELECT ... FOR UPDATE,
// runs fn against it, and persists the mutated account iff fn returns
// nil. The row lock serializes concurrent deductions for the tenant.
func (s *Store) WithAccount(ctx context.Context, tenantID int64, fn func(a *ledger.Account) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("courier/postgres: begin account tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var (
		a        ledger.Account
		plan     string
		unlockAt *time.Time
	)
	err = tx.QueryRow(ctx, `
		SELECT tenant_id, plan, sourcing_remaining, priority_unlock_at,
		       daily_remaining, bulk_remaining, metered_remaining,
		       filter_remaining, updated_at
		FROM courier_accounts
		WHERE tenant_id = $1
		FOR UPDATE`,
		tenantID,
	).Scan(
		&a.TenantID, &plan, &a.SourcingRemaining, &unlockAt,
		&a.DailyRemaining, &a.BulkRemaining, &a.MeteredRemaining,
		&a.FilterRemaining, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return courier.ErrAccountNotFound
		}
		return fmt.Errorf("courier/postgres: load account: %w", err)
	}
	a.Plan = ledger.Plan(plan)
	a.PriorityUnlockAt = unlockAt

	if err := fn(&a); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE courier_accounts SET
			plan = $2,
			sourcing_remaining = $3,
			priority_unlock_at = $4,
			daily_remaining = $5,
			bulk_remaining = $6,
			metered_remaining = $7,
			filter_remaining = $8,
			updated_at = $9
		WHERE tenant_id = $1`,
		a.TenantID, string(a.Plan), a.SourcingRemaining, a.PriorityUnlockAt,
		a.DailyRemaining, a.BulkRemaining, a.MeteredRemaining,
		a.FilterRemaining, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("courier/postgres: update account: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("courier/postgres: commit account tx: %w", err)
	}
	return nil
}

// PutAccount inserts or replaces a tenant's account. Used for
// provisioning and plan changes.
func (s *Store) PutAccount(ctx context.Context, a *ledger.Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO courier_accounts (
			tenant_id, plan, sourcing_remaining, priority_unlock_at,
			daily_remaining, bulk_remaining, metered_remaining,
			filter_remaining, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			sourcing_remaining = EXCLUDED.sourcing_remaining,
			priority_unlock_at = EXCLUDED.priority_unlock_at,
			daily_remaining = EXCLUDED.daily_remaining,
			bulk_remaining = EXCLUDED.bulk_remaining,
			metered_remaining = EXCLUDED.metered_remaining,
			filter_remaining = EXCLUDED.filter_remaining,
			updated_at = EXCLUDED.updated_at`,
		a.TenantID, string(a.Plan), a.SourcingRemaining, a.PriorityUnlockAt,
		a.DailyRemaining, a.BulkRemaining, a.MeteredRemaining,
		a.FilterRemaining, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("courier/postgres: put account: %w", err)
	}
	return nil
}

// AppendUsage appends one usage-log row.
func (s *Store) AppendUsage(ctx context.Context, e *ledger.UsageEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO courier_usage_log (id, tenant_id, domain, tier, event, amount, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID.String(), e.TenantID, string(e.Domain), string(e.Tier),
		string(e.Event), e.Amount, e.At,
	)
	if err != nil {
		return fmt.Errorf("courier/postgres: append usage: %w", err)
	}
	return nil
}

// AddItemsProcessed bumps the tenant's cumulative processed counter.
func (s *Store) AddItemsProcessed(ctx context.Context, tenantID int64, n int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO courier_processed (tenant_id, items, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET
			items = courier_processed.items + EXCLUDED.items,
			updated_at = NOW()`,
		tenantID, n,
	)
	if err != nil {
		return fmt.Errorf("courier/postgres: add items processed: %w", err)
	}
	return nil
}
