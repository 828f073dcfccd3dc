package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/crechebooks/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"
)

// setupTestTracer installs an in-memory span recorder as the global provider.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, span := telemetry.StartServiceSpan(context.Background(), "allocation", "allocate")
	tenantID := uuid.New()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID,
		telemetry.SpanAttrAmountCents, int64(345000),
		"lines", 2,
		42, "ignored",
	)
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "allocation.allocate", spans[0].Name())

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, tenantID.String(), attrs[telemetry.SpanAttrTenantID].AsString())
	assert.Equal(t, int64(345000), attrs[telemetry.SpanAttrAmountCents].AsInt64())
	assert.Equal(t, int64(2), attrs["lines"].AsInt64())
	assert.Len(t, attrs, 3)
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "reconciliation.reconcile")
	telemetry.RecordError(span, errors.New("overlap"))
	telemetry.RecordError(span, nil)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "overlap", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "reminder.send_reminders")
	telemetry.AddEvent(span, "reminder_skipped", "reason", "invoice fully paid")
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "reminder_skipped", spans[0].Events()[0].Name)
	assert.Equal(t, "invoice fully paid", spans[0].Events()[0].Attributes[0].Value.AsString())
}

func TestStartSpan_WithAttribute(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "escalation.sweep",
		telemetry.WithAttribute(telemetry.SpanAttrRunID, "run-1"),
		telemetry.WithAttribute("workers", 4),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "run-1", attrs[telemetry.SpanAttrRunID].AsString())
	assert.Equal(t, int64(4), attrs["workers"].AsInt64())
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:     false,
		ServiceName: "crechebooks-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.ForceFlush(context.Background()))
	assert.NoError(t, tp.Shutdown(context.Background()))
}
