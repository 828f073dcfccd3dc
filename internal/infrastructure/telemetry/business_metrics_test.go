package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crechebooks/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

type stubArrearsProvider struct {
	outstanding map[uuid.UUID]int64
	err         error
}

func (s stubArrearsProvider) OutstandingCentsByTenant(context.Context) (map[uuid.UUID]int64, error) {
	return s.outstanding, s.err
}

func newTestMetrics(t *testing.T, provider telemetry.ArrearsMetricsProvider) (*telemetry.BookkeepingMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	bm, err := telemetry.NewBookkeepingMetrics(telemetry.BookkeepingMetricsConfig{
		Meter:           mp.Meter("test"),
		Logger:          zaptest.NewLogger(t),
		ArrearsProvider: provider,
	})
	require.NoError(t, err)
	return bm, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumFor(t *testing.T, data metricdata.Aggregation, attr attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok)
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attr.Key); ok && v == attr.Value {
			return dp.Value
		}
	}
	return 0
}

func TestNewBookkeepingMetrics_NilMeter(t *testing.T) {
	_, err := telemetry.NewBookkeepingMetrics(telemetry.BookkeepingMetricsConfig{})
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}

func TestBookkeepingMetrics_Counters(t *testing.T) {
	bm, reader := newTestMetrics(t, nil)
	ctx := context.Background()

	bm.RecordMatchDecision(ctx, "AUTO_APPLY", 3)
	bm.RecordMatchDecision(ctx, "NO_MATCH", 0)
	bm.RecordAllocation(ctx, "AI_AUTO", 345000)
	bm.RecordAllocation(ctx, "AI_AUTO", 5000)
	bm.RecordReconciliation(ctx, "RECONCILED")
	bm.RecordReminder(ctx, "FINAL", "SENT")

	data := collect(t, reader)
	assert.Equal(t, int64(3), sumFor(t, data["crechebooks_match_decision_total"], telemetry.AttrDecision.String("AUTO_APPLY")))
	assert.Equal(t, int64(2), sumFor(t, data["crechebooks_allocation_total"], telemetry.AttrMatchedBy.String("AI_AUTO")))
	assert.Equal(t, int64(350000), sumFor(t, data["crechebooks_allocated_amount_total"], telemetry.AttrMatchedBy.String("AI_AUTO")))
	assert.Equal(t, int64(1), sumFor(t, data["crechebooks_reconciliation_total"], telemetry.AttrStatus.String("RECONCILED")))
	assert.Equal(t, int64(1), sumFor(t, data["crechebooks_reminder_total"], telemetry.AttrEscalationLevel.String("FINAL")))
}

func TestBookkeepingMetrics_NilReceiver(t *testing.T) {
	var bm *telemetry.BookkeepingMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		bm.RecordMatchDecision(ctx, "AUTO_APPLY", 1)
		bm.RecordAllocation(ctx, "USER", 100)
		bm.RecordReconciliation(ctx, "DISCREPANCY")
		bm.RecordReminder(ctx, "FRIENDLY", "FAILED")
		bm.StartPeriodicCollection(ctx, time.Second)
		bm.Stop()
	})
}

func TestBookkeepingMetrics_PeriodicArrears(t *testing.T) {
	tenantID := uuid.New()
	bm, reader := newTestMetrics(t, stubArrearsProvider{outstanding: map[uuid.UUID]int64{tenantID: 120000}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bm.StartPeriodicCollection(ctx, time.Hour)
	defer bm.Stop()

	assert.Eventually(t, func() bool {
		data := collect(t, reader)
		gauge, ok := data["crechebooks_arrears_outstanding"].(metricdata.Gauge[int64])
		return ok && len(gauge.DataPoints) == 1 && gauge.DataPoints[0].Value == 120000
	}, time.Second, 10*time.Millisecond)
}

func TestBookkeepingMetrics_PeriodicArrearsError(t *testing.T) {
	bm, reader := newTestMetrics(t, stubArrearsProvider{err: errors.New("db down")})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bm.StartPeriodicCollection(ctx, time.Hour)
	time.Sleep(20 * time.Millisecond)
	bm.Stop()

	_, ok := collect(t, reader)["crechebooks_arrears_outstanding"]
	assert.False(t, ok)
}

func TestBookkeepingMetrics_RecordEscalationSweep(t *testing.T) {
	bm, reader := newTestMetrics(t, nil)
	ctx := context.Background()

	bm.RecordEscalationSweep(ctx, 42*time.Second, 3, 0, 1)

	data := collect(t, reader)
	tenants := data["crechebooks_escalation_tenant_total"]
	assert.Equal(t, int64(3), sumFor(t, tenants, telemetry.AttrOutcome.String("success")))
	assert.Equal(t, int64(1), sumFor(t, tenants, telemetry.AttrOutcome.String("failed")))
	assert.Equal(t, int64(0), sumFor(t, tenants, telemetry.AttrOutcome.String("skipped")))

	hist, ok := data["crechebooks_escalation_sweep_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 42.0, hist.DataPoints[0].Sum, 0.001)
}
