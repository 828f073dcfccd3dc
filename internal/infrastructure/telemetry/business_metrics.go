package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BookkeepingMetrics records counters for matching, allocation, reconciliation and reminders.
// All Record methods are safe on a nil receiver so services can run without metrics.
type BookkeepingMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	matchDecisionTotal  *Counter
	allocationTotal     *Counter
	allocatedCentsTotal *Counter
	reconciliationTotal *Counter
	reminderTotal       *Counter
	arrearsOutstanding  *Gauge
	sweepDuration       *Histogram
	sweepTenantTotal    *Counter

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	arrearsProvider ArrearsMetricsProvider
}

// ArrearsMetricsProvider reports outstanding invoice balances per tenant for the arrears gauge
type ArrearsMetricsProvider interface {
	OutstandingCentsByTenant(ctx context.Context) (map[uuid.UUID]int64, error)
}

// BookkeepingMetricsConfig holds configuration for bookkeeping metrics.
type BookkeepingMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	ArrearsProvider ArrearsMetricsProvider
}

// NewBookkeepingMetrics creates the bookkeeping counters on meter
func NewBookkeepingMetrics(cfg BookkeepingMetricsConfig) (*BookkeepingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BookkeepingMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		arrearsProvider: cfg.ArrearsProvider,
	}

	var err error
	if bm.matchDecisionTotal, err = NewCounter(cfg.Meter,
		"crechebooks_match_decision_total", "Bank credits by payment match decision", "{transactions}"); err != nil {
		return nil, err
	}
	if bm.allocationTotal, err = NewCounter(cfg.Meter,
		"crechebooks_allocation_total", "Payments created by allocation", "{payments}"); err != nil {
		return nil, err
	}
	if bm.allocatedCentsTotal, err = NewCounter(cfg.Meter,
		"crechebooks_allocated_amount_total", "Amount allocated to invoices in cents", "{cents}"); err != nil {
		return nil, err
	}
	if bm.reconciliationTotal, err = NewCounter(cfg.Meter,
		"crechebooks_reconciliation_total", "Bank reconciliations by outcome", "{reconciliations}"); err != nil {
		return nil, err
	}
	if bm.reminderTotal, err = NewCounter(cfg.Meter,
		"crechebooks_reminder_total", "Payment reminders by escalation level and delivery status", "{reminders}"); err != nil {
		return nil, err
	}
	if bm.arrearsOutstanding, err = NewGauge(cfg.Meter,
		"crechebooks_arrears_outstanding", "Outstanding invoice balance in cents", "{cents}"); err != nil {
		return nil, err
	}
	if bm.sweepDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "crechebooks_escalation_sweep_duration_seconds",
		Description: "Wall time of one escalation sweep across all tenants",
		Unit:        "s",
		Boundaries:  SweepDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if bm.sweepTenantTotal, err = NewCounter(cfg.Meter,
		"crechebooks_escalation_tenant_total", "Tenants processed by escalation sweeps by outcome", "{tenants}"); err != nil {
		return nil, err
	}
	return bm, nil
}

// RecordMatchDecision counts transactions that ended in a match decision
func (bm *BookkeepingMetrics) RecordMatchDecision(ctx context.Context, decision string, count int) {
	if bm == nil || count <= 0 {
		return
	}
	bm.matchDecisionTotal.Add(ctx, int64(count), AttrDecision.String(decision))
}

// RecordAllocation counts one payment and its amount
func (bm *BookkeepingMetrics) RecordAllocation(ctx context.Context, matchedBy string, amountCents int64) {
	if bm == nil {
		return
	}
	bm.allocationTotal.Inc(ctx, AttrMatchedBy.String(matchedBy))
	bm.allocatedCentsTotal.Add(ctx, amountCents, AttrMatchedBy.String(matchedBy))
}

// RecordReconciliation counts a reconciliation by its status
func (bm *BookkeepingMetrics) RecordReconciliation(ctx context.Context, status string) {
	if bm == nil {
		return
	}
	bm.reconciliationTotal.Inc(ctx, AttrStatus.String(status))
}

// RecordReminder counts a reminder by tone and delivery status
func (bm *BookkeepingMetrics) RecordReminder(ctx context.Context, level, status string) {
	if bm == nil {
		return
	}
	bm.reminderTotal.Inc(ctx, AttrEscalationLevel.String(level), AttrStatus.String(status))
}

// RecordArrearsOutstanding sets the outstanding balance gauge of a tenant
func (bm *BookkeepingMetrics) RecordArrearsOutstanding(ctx context.Context, tenantID uuid.UUID, cents int64) {
	if bm == nil {
		return
	}
	bm.arrearsOutstanding.Record(ctx, cents, AttrTenantID.String(tenantID.String()))
}

// RecordEscalationSweep records the duration of a sweep and its per-tenant outcomes
func (bm *BookkeepingMetrics) RecordEscalationSweep(ctx context.Context, duration time.Duration, succeeded, skipped, failed int) {
	if bm == nil {
		return
	}
	bm.sweepDuration.RecordDuration(ctx, duration)
	for outcome, n := range map[string]int{"success": succeeded, "skipped": skipped, "failed": failed} {
		if n > 0 {
			bm.sweepTenantTotal.Add(ctx, int64(n), AttrOutcome.String(outcome))
		}
	}
}

// StartPeriodicCollection refreshes the arrears gauge every interval (default 5 minutes).
// It returns immediately; call Stop to end collection.
func (bm *BookkeepingMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if bm == nil {
		return
	}
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go bm.runPeriodicCollection(ctx, interval)
	})
}

func (bm *BookkeepingMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bm.collectArrears(ctx)
	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic bookkeeping metrics collection")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			bm.collectArrears(ctx)
		}
	}
}

func (bm *BookkeepingMetrics) collectArrears(ctx context.Context) {
	if bm.arrearsProvider == nil {
		return
	}
	outstanding, err := bm.arrearsProvider.OutstandingCentsByTenant(ctx)
	if err != nil {
		bm.logger.Warn("Failed to collect arrears metrics", zap.Error(err))
		return
	}
	for tenantID, cents := range outstanding {
		bm.RecordArrearsOutstanding(ctx, tenantID, cents)
	}
}

// Stop stops the periodic collection.
func (bm *BookkeepingMetrics) Stop() {
	if bm == nil {
		return
	}
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBookkeepingMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// Bookkeeping metric attribute keys
var (
	AttrDecision        = attribute.Key("decision")
	AttrMatchedBy       = attribute.Key("matched_by")
	AttrStatus          = attribute.Key("status")
	AttrEscalationLevel = attribute.Key("escalation_level")
	AttrOutcome         = attribute.Key("outcome")
)

// SweepDurationBuckets are bucket boundaries for escalation sweep duration (seconds).
var SweepDurationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 900}
