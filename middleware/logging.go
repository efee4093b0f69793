package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/channelport/courier/task"
)

// Logging returns middleware that logs task start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) error {
		logger.Info("task started",
			slog.String("kind", string(t.Kind)),
			slog.String("task_id", t.ID.String()),
			slog.Int64("tenant_id", t.TenantID),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("task failed",
				slog.String("kind", string(t.Kind)),
				slog.String("task_id", t.ID.String()),
				slog.Int64("tenant_id", t.TenantID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("task completed",
				slog.String("kind", string(t.Kind)),
				slog.String("task_id", t.ID.String()),
				slog.Int64("tenant_id", t.TenantID),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
