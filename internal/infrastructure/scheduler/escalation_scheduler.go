package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	appfinance "github.com/crechebooks/backend/internal/application/finance"
	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/crechebooks/backend/internal/infrastructure/logger"
	"github.com/crechebooks/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Escalator sends the reminders due for one tenant
type Escalator interface {
	EscalateOverdue(ctx context.Context, tenantID uuid.UUID) (*appfinance.EscalationResult, error)
}

// TenantSource lists the tenants that have overdue invoices
type TenantSource interface {
	FindTenantsWithOverdue(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
}

// EscalationSchedulerConfig holds configuration for the escalation scheduler
type EscalationSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// Interval is the time between sweeps
	Interval time.Duration

	// Workers bounds how many tenants are escalated at once
	Workers int

	// TenantTimeout is the maximum time for one tenant's escalation
	TenantTimeout time.Duration

	// RunOnStart sweeps immediately instead of waiting one interval
	RunOnStart bool
}

// DefaultEscalationSchedulerConfig returns default configuration
func DefaultEscalationSchedulerConfig() EscalationSchedulerConfig {
	return EscalationSchedulerConfig{
		Enabled:       true,
		Interval:      time.Hour,
		Workers:       4,
		TenantTimeout: 5 * time.Minute,
		RunOnStart:    true,
	}
}

// Validate checks the configuration
func (c EscalationSchedulerConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	if c.TenantTimeout <= 0 {
		return fmt.Errorf("%w: tenant timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// SweepSummary tallies one pass over all tenants with overdue invoices
type SweepSummary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Tenants   int
	Succeeded int
	Skipped   int
	Failed    int
	Friendly  int
	Firm      int
	Final     int
	Jobs      []*TenantJob
}

// EscalationScheduler periodically escalates overdue invoices for every tenant
type EscalationScheduler struct {
	escalator Escalator
	tenants   TenantSource
	config    EscalationSchedulerConfig
	logger    *zap.Logger
	metrics   *telemetry.BookkeepingMetrics
	now       func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	sweeping  sync.Mutex
}

// EscalationSchedulerOption configures an EscalationScheduler
type EscalationSchedulerOption func(*EscalationScheduler)

// WithClock overrides the time source
func WithClock(now func() time.Time) EscalationSchedulerOption {
	return func(s *EscalationScheduler) {
		s.now = now
	}
}

// WithSchedulerMetrics records sweep duration and tenant outcomes
func WithSchedulerMetrics(metrics *telemetry.BookkeepingMetrics) EscalationSchedulerOption {
	return func(s *EscalationScheduler) {
		s.metrics = metrics
	}
}

// NewEscalationScheduler creates a new escalation scheduler
func NewEscalationScheduler(
	escalator Escalator,
	tenants TenantSource,
	config EscalationSchedulerConfig,
	logger *zap.Logger,
	opts ...EscalationSchedulerOption,
) *EscalationScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &EscalationScheduler{
		escalator: escalator,
		tenants:   tenants,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the sweep loop
func (s *EscalationScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Escalation scheduler is disabled")
		return nil
	}
	if err := s.config.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Escalation scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("workers", s.config.Workers),
		zap.Duration("tenant_timeout", s.config.TenantTimeout),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for an in-flight sweep
func (s *EscalationScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Escalation scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Escalation scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the sweep loop is active
func (s *EscalationScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *EscalationScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.sweepAndLog(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Escalation loop stopping")
			return
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *EscalationScheduler) sweepAndLog(ctx context.Context) {
	summary, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("Escalation sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("Escalation sweep completed",
		zap.String("run_id", summary.RunID),
		zap.Int("tenants", summary.Tenants),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("friendly", summary.Friendly),
		zap.Int("firm", summary.Firm),
		zap.Int("final", summary.Final),
		zap.Duration("duration", summary.Duration),
	)
}

// RunOnce escalates every tenant with overdue invoices through a bounded worker pool.
// One tenant's failure never stops the others. A tenant locked by another worker is skipped.
func (s *EscalationScheduler) RunOnce(ctx context.Context) (*SweepSummary, error) {
	if !s.sweeping.TryLock() {
		return nil, ErrSweepInProgress
	}
	defer s.sweeping.Unlock()

	runID := uuid.NewString()
	ctx, runLog := logger.WithRunID(ctx, s.logger, runID)
	ctx, span := telemetry.StartSpan(ctx, "escalation.sweep",
		telemetry.WithAttribute(telemetry.SpanAttrRunID, runID),
		telemetry.WithAttribute("workers", s.config.Workers),
	)
	defer span.End()

	startedAt := s.now()
	tenantIDs, err := s.tenants.FindTenantsWithOverdue(ctx, startedAt)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list tenants with overdue invoices: %w", err)
	}

	jobs := make([]*TenantJob, len(tenantIDs))
	workers := s.config.Workers
	if workers <= 0 {
		workers = 1
	}
	p := pool.New().WithMaxGoroutines(workers)
	for i, tenantID := range tenantIDs {
		job := NewTenantJob(tenantID)
		jobs[i] = job
		p.Go(func() {
			s.process(ctx, runLog, job)
		})
	}
	p.Wait()

	summary := &SweepSummary{
		RunID:     runID,
		StartedAt: startedAt,
		Duration:  s.now().Sub(startedAt),
		Tenants:   len(jobs),
		Jobs:      jobs,
	}
	for _, job := range jobs {
		switch job.Status {
		case JobStatusSuccess:
			summary.Succeeded++
			if job.Result != nil {
				summary.Friendly += job.Result.Friendly
				summary.Firm += job.Result.Firm
				summary.Final += job.Result.Final
			}
		case JobStatusSkipped:
			summary.Skipped++
		default:
			summary.Failed++
			telemetry.AddEvent(span, "tenant_failed",
				telemetry.SpanAttrTenantID, job.TenantID.String(),
				"error", job.Error,
			)
		}
	}
	telemetry.SetAttributes(span,
		"tenants", summary.Tenants,
		"failed", summary.Failed,
	)
	s.metrics.RecordEscalationSweep(ctx, summary.Duration, summary.Succeeded, summary.Skipped, summary.Failed)
	return summary, nil
}

func (s *EscalationScheduler) process(ctx context.Context, runLog *zap.Logger, job *TenantJob) {
	job.Start(s.now())
	ctx, log := logger.WithTenantID(ctx, runLog, job.TenantID.String())

	if ctx.Err() != nil {
		job.Fail(s.now(), ctx.Err().Error())
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, s.tenantTimeout())
	defer cancel()

	result, err := s.escalator.EscalateOverdue(jobCtx, job.TenantID)
	switch {
	case err == nil:
		job.Complete(s.now(), result)
	case shared.IsConflict(err):
		job.Skip(s.now(), err.Error())
		log.Info("Tenant escalation skipped",
			zap.String("reason", err.Error()),
		)
	default:
		job.Fail(s.now(), err.Error())
		logger.WithTraceContext(ctx, log).Error("Tenant escalation failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *EscalationScheduler) tenantTimeout() time.Duration {
	if s.config.TenantTimeout > 0 {
		return s.config.TenantTimeout
	}
	return DefaultEscalationSchedulerConfig().TenantTimeout
}
