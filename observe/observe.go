// Package observe provides an OpenTelemetry hook that counts courier
// lifecycle events. Register it on the hook registry to export
// admission, outcome, and quota metrics without touching the core.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/channelport/courier/hook"
	"github.com/channelport/courier/status"
	"github.com/channelport/courier/task"
)

const meterName = "github.com/channelport/courier/observe"

// Compile-time checks that MetricsHook covers every lifecycle event.
var (
	_ hook.Hook             = (*MetricsHook)(nil)
	_ hook.TaskAdmitted     = (*MetricsHook)(nil)
	_ hook.TaskRejected     = (*MetricsHook)(nil)
	_ hook.TaskCompleted    = (*MetricsHook)(nil)
	_ hook.TaskFailed       = (*MetricsHook)(nil)
	_ hook.TaskDeadLettered = (*MetricsHook)(nil)
	_ hook.QuotaDeducted    = (*MetricsHook)(nil)
	_ hook.QuotaRefilled    = (*MetricsHook)(nil)
)

// MetricsHook counts lifecycle events with OTel instruments. Without a
// configured MeterProvider all instruments are noop.
type MetricsHook struct {
	admitted     metric.Int64Counter
	rejected     metric.Int64Counter
	completed    metric.Int64Counter
	failed       metric.Int64Counter
	deadlettered metric.Int64Counter
	deducted     metric.Int64Counter
	refilled     metric.Int64Counter
}

// NewMetricsHook creates a metrics hook using the global MeterProvider.
func NewMetricsHook() *MetricsHook {
	return NewMetricsHookWithMeter(otel.Meter(meterName))
}

// NewMetricsHookWithMeter creates a metrics hook with an explicit
// meter, for tests.
func NewMetricsHookWithMeter(meter metric.Meter) *MetricsHook {
	h := &MetricsHook{}
	// The OTel API falls back to noop instruments on error.
	h.admitted, _ = meter.Int64Counter("courier.task.admitted",
		metric.WithDescription("Tasks admitted by the rate gate"),
		metric.WithUnit("{task}"))
	h.rejected, _ = meter.Int64Counter("courier.task.rejected",
		metric.WithDescription("Tasks rejected by the rate gate and re-enqueued"),
		metric.WithUnit("{task}"))
	h.completed, _ = meter.Int64Counter("courier.task.completed",
		metric.WithDescription("Tasks completed successfully"),
		metric.WithUnit("{task}"))
	h.failed, _ = meter.Int64Counter("courier.task.failed",
		metric.WithDescription("Tasks that failed, by outcome"),
		metric.WithUnit("{task}"))
	h.deadlettered, _ = meter.Int64Counter("courier.task.deadlettered",
		metric.WithDescription("Tasks captured in the dead letter store"),
		metric.WithUnit("{task}"))
	h.deducted, _ = meter.Int64Counter("courier.quota.deducted",
		metric.WithDescription("Quota units deducted, by domain and tier"),
		metric.WithUnit("{unit}"))
	h.refilled, _ = meter.Int64Counter("courier.quota.refilled",
		metric.WithDescription("Quota units granted by priority auto-refill"),
		metric.WithUnit("{unit}"))
	return h
}

// Name identifies the hook in the registry.
func (h *MetricsHook) Name() string { return "observe.metrics" }

func kindAttr(t *task.Task) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("kind", string(t.Kind)))
}

func (h *MetricsHook) OnTaskAdmitted(ctx context.Context, t *task.Task) error {
	h.admitted.Add(ctx, 1, kindAttr(t))
	return nil
}

func (h *MetricsHook) OnTaskRejected(ctx context.Context, t *task.Task, reason string) error {
	h.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(t.Kind)),
		attribute.String("reason", reason),
	))
	return nil
}

func (h *MetricsHook) OnTaskCompleted(ctx context.Context, t *task.Task, _ time.Duration) error {
	h.completed.Add(ctx, 1, kindAttr(t))
	return nil
}

func (h *MetricsHook) OnTaskFailed(ctx context.Context, t *task.Task, outcome status.Outcome, _ error) error {
	h.failed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(t.Kind)),
		attribute.String("outcome", string(outcome)),
	))
	return nil
}

func (h *MetricsHook) OnTaskDeadLettered(ctx context.Context, t *task.Task, _ error) error {
	h.deadlettered.Add(ctx, 1, kindAttr(t))
	return nil
}

func (h *MetricsHook) OnQuotaDeducted(ctx context.Context, _ int64, domain, tier string, amount int64) error {
	h.deducted.Add(ctx, amount, metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("tier", tier),
	))
	return nil
}

func (h *MetricsHook) OnQuotaRefilled(ctx context.Context, _ int64, amount int64, _ time.Time) error {
	h.refilled.Add(ctx, amount)
	return nil
}
