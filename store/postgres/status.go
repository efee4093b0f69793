package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/channelport/courier"
	"github.com/channelport/courier/id"
	"github.com/channelport/courier/status"
	"github.com/channelport/courier/task"
)

// Report upserts the latest outcome report for a task.
func (s *Store) Report(ctx context.Context, r *status.Report) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO courier_reports (task_id, tenant_id, kind, outcome, error, at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (task_id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			error = EXCLUDED.error,
			at = EXCLUDED.at`,
		r.TaskID.String(), r.TenantID, string(r.Kind), string(r.Outcome), r.Error, r.At,
	)
	if err != nil {
		return fmt.Errorf("courier/postgres: report: %w", err)
	}
	return nil
}

// GetReport returns the latest report for a task.
func (s *Store) GetReport(ctx context.Context, taskID id.TaskID) (*status.Report, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT task_id, tenant_id, kind, outcome, error, at
		FROM courier_reports
		WHERE task_id = $1`,
		taskID.String(),
	)
	r, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, courier.ErrReportNotFound
		}
		return nil, fmt.Errorf("courier/postgres: get report: %w", err)
	}
	return r, nil
}

// ListReports returns a tenant's most recent reports, newest first.
func (s *Store) ListReports(ctx context.Context, tenantID int64, limit int) ([]*status.Report, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT task_id, tenant_id, kind, outcome, error, at
		FROM courier_reports
		WHERE tenant_id = $1
		ORDER BY at DESC
		LIMIT $2`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("courier/postgres: list reports: %w", err)
	}
	defer rows.Close()

	var out []*status.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("courier/postgres: list reports: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReport(row pgx.Row) (*status.Report, error) {
	var (
		r       status.Report
		taskID  string
		kind    string
		outcome string
	)
	if err := row.Scan(&taskID, &r.TenantID, &kind, &outcome, &r.Error, &r.At); err != nil {
		return nil, err
	}
	parsed, err := id.ParseWithPrefix(taskID, id.PrefixTask)
	if err != nil {
		return nil, err
	}
	r.TaskID = parsed
	r.Kind = task.Kind(kind)
	r.Outcome = status.Outcome(outcome)
	return &r, nil
}
