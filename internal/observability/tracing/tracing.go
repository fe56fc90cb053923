package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "statusboard"

// tracer resolves against the global provider on every call so tests can swap it.
func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartEventSpan starts a span for an operation on one event identifier.
func StartEventSpan(ctx context.Context, op, eventID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{attribute.String("event.id", eventID)}, attrs...)
	return tracer().Start(ctx, "statusboard."+op,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// End completes a span, recording err when set.
func End(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
