package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/crechebooks/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type tracedRow struct {
	ID   uint
	Name string
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	return db
}

func TestRegisterDBTracing(t *testing.T) {
	sr := setupTestTracer(t)
	db := openTestDB(t)

	cfg := telemetry.DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"
	require.NoError(t, telemetry.RegisterDBTracing(db, cfg, zaptest.NewLogger(t)))

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&tracedRow{Name: "a"}).Error)
	var rows []tracedRow
	require.NoError(t, db.WithContext(ctx).Find(&rows).Error)

	assert.NotEmpty(t, sr.Ended())
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	sr := setupTestTracer(t)
	db := openTestDB(t)

	require.NoError(t, telemetry.RegisterDBTracing(db, telemetry.DefaultDBTracingConfig(), zaptest.NewLogger(t)))
	require.NoError(t, db.Create(&tracedRow{Name: "a"}).Error)

	assert.Empty(t, sr.Ended())
}

func TestRegisterDBMetrics_DisabledProvider(t *testing.T) {
	db := openTestDB(t)
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	metrics, err := telemetry.RegisterDBMetrics(context.Background(), db, mp, telemetry.DefaultDBMetricsConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Nil(t, metrics)
}

func TestDBMetrics_RecordQuery(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	m, err := telemetry.NewDBMetrics(provider.Meter("db"), telemetry.DBMetricsConfig{SlowQueryThreshold: 10 * time.Millisecond}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordQuery(ctx, "select", "invoices", time.Millisecond)
	m.RecordQuery(ctx, "update", "bank_transactions", 50*time.Millisecond)

	data := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, data["db_query_total"], telemetry.AttrDBOperation.String("SELECT")))
	assert.Equal(t, int64(1), sumFor(t, data["db_slow_query_total"], telemetry.AttrDBTable.String("bank_transactions")))
}
