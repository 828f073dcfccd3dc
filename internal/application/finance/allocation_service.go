package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/crechebooks/backend/internal/domain/shared/valueobject"
	"github.com/crechebooks/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// AllocationService applies bank credits to invoices
type AllocationService struct {
	txScope   TransactionScope
	publisher shared.EventPublisher
	logger    *zap.Logger
	metrics   *telemetry.BookkeepingMetrics
	now       func() time.Time
}

// AllocationServiceOption configures an AllocationService
type AllocationServiceOption func(*AllocationService)

// WithAllocationLogger sets the logger
func WithAllocationLogger(logger *zap.Logger) AllocationServiceOption {
	return func(s *AllocationService) {
		s.logger = logger
	}
}

// WithAllocationMetrics sets the business metrics recorder
func WithAllocationMetrics(metrics *telemetry.BookkeepingMetrics) AllocationServiceOption {
	return func(s *AllocationService) {
		s.metrics = metrics
	}
}

// WithAllocationEventPublisher publishes a PaymentAllocated event per payment
func WithAllocationEventPublisher(publisher shared.EventPublisher) AllocationServiceOption {
	return func(s *AllocationService) {
		s.publisher = publisher
	}
}

// WithAllocationClock overrides the time source
func WithAllocationClock(now func() time.Time) AllocationServiceOption {
	return func(s *AllocationService) {
		s.now = now
	}
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(txScope TransactionScope, opts ...AllocationServiceOption) *AllocationService {
	s := &AllocationService{
		txScope: txScope,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AllocationLine is one invoice share of a transaction
type AllocationLine struct {
	InvoiceID   uuid.UUID `json:"invoice_id" validate:"required"`
	AmountCents int64     `json:"amount_cents" validate:"gt=0"`
}

// AllocateRequest represents a request to allocate a transaction to invoices
type AllocateRequest struct {
	TenantID      uuid.UUID         `json:"tenant_id" validate:"required"`
	TransactionID uuid.UUID         `json:"transaction_id" validate:"required"`
	Allocations   []AllocationLine  `json:"allocations" validate:"required,min=1,dive"`
	MatchedBy     finance.MatchedBy `json:"matched_by" validate:"omitempty,oneof=AI_AUTO USER"`
	Confidence    *int              `json:"confidence" validate:"omitempty,gte=0,lte=100"`
}

// AllocateResult represents the outcome of an allocation
type AllocateResult struct {
	TransactionID          uuid.UUID         `json:"transaction_id"`
	Payments               []finance.Payment `json:"payments"`
	InvoicesUpdated        []finance.Invoice `json:"invoices_updated"`
	UnallocatedAmountCents int64             `json:"unallocated_amount_cents"`
}

// Allocate applies a transaction's amount, whole or split, to one or more invoices.
// The transaction row is locked for the duration so concurrent calls serialize, and the
// payments, invoice balances and transaction total are committed together.
func (s *AllocationService) Allocate(ctx context.Context, req AllocateRequest) (*AllocateResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "allocate")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrTransactionID, req.TransactionID.String(),
		"lines", len(req.Allocations),
	)

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if dupes := lo.FindDuplicatesBy(req.Allocations, func(l AllocationLine) uuid.UUID { return l.InvoiceID }); len(dupes) > 0 {
		err := shared.NewValidationError("DUPLICATE_INVOICE", fmt.Sprintf("Invoice %s appears more than once", dupes[0].InvoiceID))
		telemetry.RecordError(span, err)
		return nil, err
	}
	matchedBy := req.MatchedBy
	if matchedBy == "" {
		matchedBy = finance.MatchedByUser
	}

	var (
		result *AllocateResult
		events []shared.DomainEvent
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		tx, err := repos.TransactionRepo().FindByIDForUpdate(ctx, req.TenantID, req.TransactionID)
		if err != nil {
			return err
		}
		if err := tx.CheckAllocatable(); err != nil {
			return err
		}

		total := lo.SumBy(req.Allocations, func(l AllocationLine) int64 { return l.AmountCents })
		if total > tx.RemainingCents() {
			return shared.NewConflictError("OVER_ALLOCATION", fmt.Sprintf(
				"Allocations total %s exceeds unallocated remainder %s",
				valueobject.NewMoneyFromCents(total), valueobject.NewMoneyFromCents(tx.RemainingCents())))
		}

		ids := lo.Map(req.Allocations, func(l AllocationLine, _ int) uuid.UUID { return l.InvoiceID })
		invoices, err := repos.InvoiceRepo().FindByIDsForTenant(ctx, req.TenantID, ids)
		if err != nil {
			return err
		}
		byID := lo.KeyBy(invoices, func(inv finance.Invoice) uuid.UUID { return inv.ID })

		now := s.now()
		payments := make([]*finance.Payment, 0, len(req.Allocations))
		updated := make([]*finance.Invoice, 0, len(req.Allocations))
		for _, line := range req.Allocations {
			inv, ok := byID[line.InvoiceID]
			if !ok {
				return shared.NewNotFoundError("invoice", line.InvoiceID)
			}
			amount := valueobject.NewMoneyFromCents(line.AmountCents)
			matchType := matchTypeFor(matchedBy, line.AmountCents, inv.OutstandingCents())
			if err := inv.ApplyPayment(amount, now); err != nil {
				return err
			}
			payment, err := finance.NewPayment(req.TenantID, tx.ID, inv.ID, amount, tx.Date, matchType, matchedBy, req.Confidence)
			if err != nil {
				return err
			}
			payments = append(payments, payment)
			updated = append(updated, &inv)
		}

		if err := tx.RecordAllocation(valueobject.NewMoneyFromCents(total), now); err != nil {
			return err
		}
		if err := repos.PaymentRepo().CreateBatch(ctx, payments); err != nil {
			return err
		}
		for _, inv := range updated {
			if err := repos.InvoiceRepo().SaveWithLock(ctx, inv); err != nil {
				return err
			}
		}
		if err := repos.TransactionRepo().SaveWithLock(ctx, tx); err != nil {
			return err
		}

		events = make([]shared.DomainEvent, len(payments))
		for i, p := range payments {
			events[i] = finance.NewPaymentAllocatedEvent(p, updated[i], now)
		}
		result = &AllocateResult{
			TransactionID:          tx.ID,
			Payments:               lo.Map(payments, func(p *finance.Payment, _ int) finance.Payment { return *p }),
			InvoicesUpdated:        lo.Map(updated, func(inv *finance.Invoice, _ int) finance.Invoice { return *inv }),
			UnallocatedAmountCents: tx.RemainingCents(),
		}
		return nil
	})
	if err != nil {
		err = classify(err, "allocate transaction")
		telemetry.RecordError(span, err)
		s.logger.Warn("allocation rejected",
			zap.String("tenant_id", req.TenantID.String()),
			zap.String("transaction_id", req.TransactionID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	for _, p := range result.Payments {
		s.metrics.RecordAllocation(ctx, string(matchedBy), p.AmountCents)
	}
	publishEvents(ctx, s.publisher, s.logger, events...)
	s.logger.Info("transaction allocated",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("transaction_id", req.TransactionID.String()),
		zap.Int("payments", len(result.Payments)),
		zap.Int64("unallocated_cents", result.UnallocatedAmountCents),
	)
	return result, nil
}

func matchTypeFor(matchedBy finance.MatchedBy, amountCents, outstandingCents int64) finance.MatchType {
	switch {
	case matchedBy == finance.MatchedByUser:
		return finance.MatchTypeManual
	case amountCents == outstandingCents:
		return finance.MatchTypeExact
	default:
		return finance.MatchTypePartial
	}
}
