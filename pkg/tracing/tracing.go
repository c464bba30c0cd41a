// Package tracing wraps OpenTelemetry span creation for the service.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ramsey-B/bramble/pkg/appcontext"
)

var tracer trace.Tracer

// SetTracer sets the tracer used by StartSpan. Until it is set, StartSpan is a no-op.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// StartSpan starts a new span with the given name and returns the context and
// span. Spans inside a job run carry the job name and invocation id.
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	ctx, span := tracer.Start(ctx, spanName)
	if job := appcontext.GetJobName(ctx); job != "" {
		span.SetAttributes(attribute.String("job.name", job))
	}
	if id := appcontext.GetInvocationID(ctx); id != "" {
		span.SetAttributes(attribute.String("job.invocation_id", id))
	}
	return ctx, span
}

// GetActiveSpan returns the active span from the context, or nil when no real
// span is recording.
func GetActiveSpan(ctx context.Context) trace.Span {
	if tracer == nil {
		return nil
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	return span
}

// GetTraceParent returns the W3C traceparent header value for the context.
func GetTraceParent(ctx context.Context) string {
	span := GetActiveSpan(ctx)
	if span == nil {
		return ""
	}

	tp := propagation.TraceContext{}
	carrier := propagation.MapCarrier{}
	tp.Inject(ctx, carrier)

	return carrier.Get("traceparent")
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := GetActiveSpan(ctx)
	if span == nil {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

// GetSpanID returns the span ID from the context.
func GetSpanID(ctx context.Context) string {
	span := GetActiveSpan(ctx)
	if span == nil {
		return ""
	}
	return span.SpanContext().SpanID().String()
}
