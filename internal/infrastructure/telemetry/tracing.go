package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name of sync engine spans
const TracerName = "storesync"

// Span attribute keys
const (
	SpanAttrSyncID          = "sync.id"
	SpanAttrSourceStore     = "sync.source_store"
	SpanAttrTargetStore     = "sync.target_store"
	SpanAttrOperation       = "sync.operation"
	SpanAttrProductID       = "sync.product_id"
	SpanAttrInventoryItemID = "sync.inventory_item_id"
)

// StartSpan starts an internal span named name with the given attributes.
// The caller must end the span.
//
//	ctx, span := telemetry.StartSpan(ctx, "catalog.update", attribute.String(telemetry.SpanAttrSyncID, id))
//	defer span.End()
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartClientSpan starts a client span for an outbound call
func StartClientSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// RecordError records err on the span and marks it failed
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddEvent adds a named event with string attributes given as key/value pairs
func AddEvent(span trace.Span, name string, keyValues ...string) {
	if span == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		attrs = append(attrs, attribute.String(keyValues[i], keyValues[i+1]))
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID of the current span, or ""
func GetTraceID(ctx context.Context) string {
	traceID := trace.SpanFromContext(ctx).SpanContext().TraceID()
	if !traceID.IsValid() {
		return ""
	}
	return traceID.String()
}

// SpanName builds "{component}.{operation}"
func SpanName(component, operation string) string {
	return fmt.Sprintf("%s.%s", component, operation)
}
