package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/crechebooks/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ReconciliationService proves a bank account period balances and seals its transactions
type ReconciliationService struct {
	txScope            TransactionScope
	transactionRepo    finance.TransactionRepository
	reconciliationRepo finance.ReconciliationRepository
	publisher          shared.EventPublisher
	logger             *zap.Logger
	metrics            *telemetry.BookkeepingMetrics
	now                func() time.Time
}

// ReconciliationServiceOption configures a ReconciliationService
type ReconciliationServiceOption func(*ReconciliationService)

// WithReconciliationLogger sets the logger
func WithReconciliationLogger(logger *zap.Logger) ReconciliationServiceOption {
	return func(s *ReconciliationService) {
		s.logger = logger
	}
}

// WithReconciliationMetrics sets the business metrics recorder
func WithReconciliationMetrics(metrics *telemetry.BookkeepingMetrics) ReconciliationServiceOption {
	return func(s *ReconciliationService) {
		s.metrics = metrics
	}
}

// WithReconciliationEventPublisher publishes a ReconciliationCompleted event per stored reconciliation
func WithReconciliationEventPublisher(publisher shared.EventPublisher) ReconciliationServiceOption {
	return func(s *ReconciliationService) {
		s.publisher = publisher
	}
}

// WithReconciliationClock overrides the time source
func WithReconciliationClock(now func() time.Time) ReconciliationServiceOption {
	return func(s *ReconciliationService) {
		s.now = now
	}
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	txScope TransactionScope,
	transactionRepo finance.TransactionRepository,
	reconciliationRepo finance.ReconciliationRepository,
	opts ...ReconciliationServiceOption,
) *ReconciliationService {
	s := &ReconciliationService{
		txScope:            txScope,
		transactionRepo:    transactionRepo,
		reconciliationRepo: reconciliationRepo,
		logger:             zap.NewNop(),
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReconcileRequest describes one bank statement period
type ReconcileRequest struct {
	TenantID            uuid.UUID  `json:"tenant_id" validate:"required"`
	BankAccount         string     `json:"bank_account" validate:"required,max=50"`
	PeriodStart         time.Time  `json:"period_start" validate:"required"`
	PeriodEnd           time.Time  `json:"period_end" validate:"required"`
	OpeningBalanceCents int64      `json:"opening_balance_cents"`
	ClosingBalanceCents int64      `json:"closing_balance_cents"`
	ReconciledBy        *uuid.UUID `json:"reconciled_by"`
}

// period returns the request's period as whole days
func (r ReconcileRequest) period() (time.Time, time.Time) {
	return startOfDay(r.PeriodStart), startOfDay(r.PeriodEnd)
}

// Reconcile computes opening + credits - debits for the period and compares it with the
// reported closing balance. A balanced period seals every transaction in it; a discrepancy
// is recorded for audit without sealing. Overlapping an existing period is a conflict.
func (s *ReconciliationService) Reconcile(ctx context.Context, req ReconcileRequest) (*finance.Reconciliation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "reconcile")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrBankAccount, req.BankAccount,
	)

	start, end := req.period()
	if err := finance.ValidatePeriod(req.BankAccount, start, end); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var rec *finance.Reconciliation
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		existing, err := repos.ReconciliationRepo().FindOverlapping(ctx, req.TenantID, req.BankAccount, start, end)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return shared.NewConflictError("RECONCILIATION_OVERLAP", fmt.Sprintf(
				"Account %s already has a reconciliation for %s to %s",
				req.BankAccount, existing[0].PeriodStart.Format(time.DateOnly), existing[0].PeriodEnd.Format(time.DateOnly)))
		}

		transactions, err := repos.TransactionRepo().FindForPeriod(ctx, req.TenantID, req.BankAccount, start, end)
		if err != nil {
			return err
		}
		calc := finance.CalculateBalance(req.OpeningBalanceCents, req.ClosingBalanceCents, transactions)

		now := s.now()
		sealed := 0
		if calc.IsBalanced() {
			ids := lo.FilterMap(transactions, func(tx finance.Transaction, _ int) (uuid.UUID, bool) {
				return tx.ID, !tx.IsReconciled
			})
			if len(ids) > 0 {
				if err := repos.TransactionRepo().MarkReconciled(ctx, req.TenantID, ids, now); err != nil {
					return err
				}
			}
			sealed = len(ids)
		}

		rec, err = finance.NewReconciliation(req.TenantID, req.BankAccount, start, end, calc, sealed, req.ReconciledBy, now)
		if err != nil {
			return err
		}
		return repos.ReconciliationRepo().Create(ctx, rec)
	})
	if err != nil {
		err = classify(err, "reconcile bank account")
		telemetry.RecordError(span, err)
		s.logger.Warn("reconciliation rejected",
			zap.String("tenant_id", req.TenantID.String()),
			zap.String("bank_account", req.BankAccount),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordReconciliation(ctx, string(rec.Status))
	publishEvents(ctx, s.publisher, s.logger, finance.NewReconciliationCompletedEvent(rec, s.now()))
	telemetry.SetAttributes(span,
		"status", string(rec.Status),
		"discrepancy_cents", rec.DiscrepancyCents,
		"matched_count", rec.MatchedCount,
	)
	s.logger.Info("bank account reconciled",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("bank_account", req.BankAccount),
		zap.String("status", string(rec.Status)),
		zap.Int64("discrepancy_cents", rec.DiscrepancyCents),
		zap.Int("matched_count", rec.MatchedCount),
	)
	return rec, nil
}

// PreviewBalance runs the balance calculation for a period without recording or sealing anything
func (s *ReconciliationService) PreviewBalance(ctx context.Context, req ReconcileRequest) (*finance.BalanceCalculation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "preview_balance")
	defer span.End()

	start, end := req.period()
	if err := finance.ValidatePeriod(req.BankAccount, start, end); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	transactions, err := s.transactionRepo.FindForPeriod(ctx, req.TenantID, req.BankAccount, start, end)
	if err != nil {
		err = classify(err, "load period transactions")
		telemetry.RecordError(span, err)
		return nil, err
	}
	calc := finance.CalculateBalance(req.OpeningBalanceCents, req.ClosingBalanceCents, transactions)
	return &calc, nil
}

// GetReconciliation returns one reconciliation of the tenant
func (s *ReconciliationService) GetReconciliation(ctx context.Context, tenantID, id uuid.UUID) (*finance.Reconciliation, error) {
	rec, err := s.reconciliationRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, classify(err, "get reconciliation")
	}
	return rec, nil
}

// ListReconciliations pages through a tenant's reconciliations
func (s *ReconciliationService) ListReconciliations(ctx context.Context, tenantID uuid.UUID, filter finance.ReconciliationFilter) (*shared.Paginated[finance.Reconciliation], error) {
	items, err := s.reconciliationRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, classify(err, "list reconciliations")
	}
	total, err := s.reconciliationRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, classify(err, "count reconciliations")
	}
	page := shared.NewPaginated(items, total, max(filter.Page, 1), filter.Limit())
	return &page, nil
}

func startOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
