package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func TestStartEventSpan(t *testing.T) {
	exporter := setupTracingTest(t)

	_, span := StartEventSpan(context.Background(), "publish", "job.a", attribute.String("event.type", "JOB"))
	End(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "statusboard.publish", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String("event.id", "job.a"))
	assert.Contains(t, spans[0].Attributes, attribute.String("event.type", "JOB"))
}

func TestEndRecordsError(t *testing.T) {
	exporter := setupTracingTest(t)

	_, span := StartEventSpan(context.Background(), "delete", "job.a")
	End(span, errors.New("store down"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "store down", spans[0].Status.Description)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
}

func TestEndNilSpan(t *testing.T) {
	assert.NotPanics(t, func() { End(nil, errors.New("x")) })
}
