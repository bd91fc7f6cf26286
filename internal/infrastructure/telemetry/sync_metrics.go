package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrOperation   = attribute.Key("operation")
	AttrStatus      = attribute.Key("status")
	AttrSourceStore = attribute.Key("source_store")
	AttrTopic       = attribute.Key("topic")
	AttrOutcome     = attribute.Key("outcome")
)

// SyncMetrics records sync engine activity.
type SyncMetrics struct {
	operations *Counter
	duration   *Histogram
	webhooks   *Counter
	remote     *Counter
}

// NewSyncMetrics registers the sync instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	operations, err := NewCounter(meter, "sync_operations_total", "Sync operations by operation and status", "{operation}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, "sync_operation_duration_seconds", "Duration of sync operations", "s", SyncDurationBuckets)
	if err != nil {
		return nil, err
	}
	webhooks, err := NewCounter(meter, "sync_webhooks_received_total", "Webhook deliveries by topic and outcome", "{delivery}")
	if err != nil {
		return nil, err
	}
	remote, err := NewCounter(meter, "sync_platform_retries_total", "Retried calls to a store platform", "{retry}")
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{operations: operations, duration: duration, webhooks: webhooks, remote: remote}, nil
}

// RecordOperation counts one finished sync operation and its duration
func (m *SyncMetrics) RecordOperation(ctx context.Context, operation, source, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{AttrOperation.String(operation), AttrSourceStore.String(source)}
	m.operations.Inc(ctx, append(attrs, AttrStatus.String(status))...)
	m.duration.RecordDuration(ctx, elapsed, attrs...)
}

// RecordWebhook counts one webhook delivery
func (m *SyncMetrics) RecordWebhook(ctx context.Context, source, topic, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.Inc(ctx, AttrSourceStore.String(source), AttrTopic.String(topic), AttrOutcome.String(outcome))
}

// RecordRetry counts one retried platform call
func (m *SyncMetrics) RecordRetry(ctx context.Context, store string, status int) {
	if m == nil {
		return
	}
	m.remote.Inc(ctx, attribute.String("store", store), attribute.Int("http.status_code", status))
}
