package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/channelport/courier/task"
)

// Recover returns middleware that recovers from panics in the body
// chain. Panics are converted to errors and logged with a stack trace,
// so a misbehaving tenant payload cannot take down a worker slot.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("task body panicked",
					slog.String("kind", string(t.Kind)),
					slog.String("task_id", t.ID.String()),
					slog.Int64("tenant_id", t.TenantID),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in %s task: %v", t.Kind, r)
			}
		}()
		return next(ctx)
	}
}
