package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/channelport/courier"
	"github.com/channelport/courier/deadletter"
	"github.com/channelport/courier/id"
	"github.com/channelport/courier/task"
)

// PushDeadLetter persists a dead letter entry. The payload column is
// JSONB, handled natively by pgx.
func (s *Store) PushDeadLetter(ctx context.Context, e *deadletter.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO courier_dead_letters (
			id, task_id, tenant_id, kind, payload, error,
			needs_mapping, failed_at, replayed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID.String(), e.TaskID.String(), e.TenantID, string(e.Kind),
		e.Payload, e.Error, e.NeedsMapping, e.FailedAt, e.ReplayedAt, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("courier/postgres: push dead letter: %w", err)
	}
	return nil
}

// GetDeadLetter retrieves a dead letter entry by ID.
func (s *Store) GetDeadLetter(ctx context.Context, entryID id.DeadLetterID) (*deadletter.Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, task_id, tenant_id, kind, payload, error,
		       needs_mapping, failed_at, replayed_at, created_at
		FROM courier_dead_letters
		WHERE id = $1`,
		entryID.String(),
	)
	e, err := scanDeadLetter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, courier.ErrDeadLetterNotFound
		}
		return nil, fmt.Errorf("courier/postgres: get dead letter: %w", err)
	}
	return e, nil
}

// ListDeadLetters returns dead letter entries, newest first.
func (s *Store) ListDeadLetters(ctx context.Context, opts deadletter.ListOpts) ([]*deadletter.Entry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, task_id, tenant_id, kind, payload, error,
		       needs_mapping, failed_at, replayed_at, created_at
		FROM courier_dead_letters
		WHERE ($1 = 0 OR tenant_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		opts.TenantID, limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("courier/postgres: list dead letters: %w", err)
	}
	defer rows.Close()

	var out []*deadletter.Entry
	for rows.Next() {
		e, err := scanDeadLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("courier/postgres: list dead letters: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkReplayed records that an entry was re-enqueued.
func (s *Store) MarkReplayed(ctx context.Context, entryID id.DeadLetterID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE courier_dead_letters SET replayed_at = $2 WHERE id = $1`,
		entryID.String(), at,
	)
	if err != nil {
		return fmt.Errorf("courier/postgres: mark replayed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return courier.ErrDeadLetterNotFound
	}
	return nil
}

// DeleteDeadLetter removes an entry.
func (s *Store) DeleteDeadLetter(ctx context.Context, entryID id.DeadLetterID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM courier_dead_letters WHERE id = $1`,
		entryID.String(),
	)
	if err != nil {
		return fmt.Errorf("courier/postgres: delete dead letter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return courier.ErrDeadLetterNotFound
	}
	return nil
}

func scanDeadLetter(row pgx.Row) (*deadletter.Entry, error) {
	var (
		e       deadletter.Entry
		dlID    string
		taskID  string
		kind    string
		payload map[string]any
	)
	err := row.Scan(&dlID, &taskID, &e.TenantID, &kind, &payload, &e.Error,
		&e.NeedsMapping, &e.FailedAt, &e.ReplayedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	parsedID, err := id.ParseWithPrefix(dlID, id.PrefixDeadLetter)
	if err != nil {
		return nil, err
	}
	parsedTask, err := id.ParseWithPrefix(taskID, id.PrefixTask)
	if err != nil {
		return nil, err
	}
	e.ID = parsedID
	e.TaskID = parsedTask
	e.Kind = task.Kind(kind)
	e.Payload = payload
	return &e, nil
}
