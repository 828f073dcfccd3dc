package finance

import (
	"context"
	"fmt"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/domain/partner"
	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/crechebooks/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Allocator applies a transaction to invoices
type Allocator interface {
	Allocate(ctx context.Context, req AllocateRequest) (*AllocateResult, error)
}

// PaymentMatchingService runs the matcher over a tenant's unallocated credits and
// auto-applies the confident matches
type PaymentMatchingService struct {
	transactionRepo finance.TransactionRepository
	invoiceRepo     finance.InvoiceRepository
	parentRepo      partner.ParentRepository
	allocator       Allocator
	matcher         *finance.Matcher
	logger          *zap.Logger
	metrics         *telemetry.BookkeepingMetrics
}

// PaymentMatchingServiceOption configures a PaymentMatchingService
type PaymentMatchingServiceOption func(*PaymentMatchingService)

// WithMatcherConfig replaces the default matcher configuration
func WithMatcherConfig(cfg finance.MatcherConfig) PaymentMatchingServiceOption {
	return func(s *PaymentMatchingService) {
		s.matcher = finance.NewMatcher(cfg)
	}
}

// WithMatchingLogger sets the logger
func WithMatchingLogger(logger *zap.Logger) PaymentMatchingServiceOption {
	return func(s *PaymentMatchingService) {
		s.logger = logger
	}
}

// WithMatchingMetrics sets the business metrics recorder
func WithMatchingMetrics(metrics *telemetry.BookkeepingMetrics) PaymentMatchingServiceOption {
	return func(s *PaymentMatchingService) {
		s.metrics = metrics
	}
}

// NewPaymentMatchingService creates a new PaymentMatchingService
func NewPaymentMatchingService(
	transactionRepo finance.TransactionRepository,
	invoiceRepo finance.InvoiceRepository,
	parentRepo partner.ParentRepository,
	allocator Allocator,
	opts ...PaymentMatchingServiceOption,
) *PaymentMatchingService {
	s := &PaymentMatchingService{
		transactionRepo: transactionRepo,
		invoiceRepo:     invoiceRepo,
		parentRepo:      parentRepo,
		allocator:       allocator,
		matcher:         finance.NewMatcher(finance.DefaultMatcherConfig()),
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MatchPaymentsRequest selects the transactions to match.
// An empty TransactionIDs matches every unallocated credit of the tenant.
// At most 500 transactions can be selected in one pass.
type MatchPaymentsRequest struct {
	TenantID       uuid.UUID   `json:"tenant_id" validate:"required"`
	TransactionIDs []uuid.UUID `json:"transaction_ids" validate:"max=500"`
}

// AppliedMatch is an auto-match that was allocated
type AppliedMatch struct {
	TransactionID   uuid.UUID               `json:"transaction_id"`
	InvoiceID       uuid.UUID               `json:"invoice_id"`
	InvoiceNumber   string                  `json:"invoice_number"`
	AmountCents     int64                   `json:"amount_cents"`
	ConfidenceScore int                     `json:"confidence_score"`
	ConfidenceLevel finance.ConfidenceLevel `json:"confidence_level"`
	MatchReasons    []string                `json:"match_reasons"`
}

// FailedMatch is an auto-match whose allocation was rejected
type FailedMatch struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	InvoiceID     uuid.UUID `json:"invoice_id"`
	Reason        string    `json:"reason"`
}

// MatchPaymentsResult summarises a matching pass
type MatchPaymentsResult struct {
	AutoApplied    []AppliedMatch               `json:"auto_applied"`
	ReviewRequired []finance.TransactionMatch   `json:"review_required"`
	NoMatch        []uuid.UUID                  `json:"no_match"`
	Skipped        []finance.SkippedTransaction `json:"skipped"`
	Failed         []FailedMatch                `json:"failed"`
}

// MatchPayments scores the selected credits against the tenant's open invoices.
// Matches at or above the auto-apply threshold are allocated in full against the best
// invoice; lower scores are returned as ranked suggestions without any mutation.
// When a storage failure stops the auto-apply loop, the partial result is returned
// with the error so the caller still sees which allocations were committed.
func (s *PaymentMatchingService) MatchPayments(ctx context.Context, req MatchPaymentsRequest) (*MatchPaymentsResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_matching", "match_payments")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, req.TenantID.String())

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	transactions, err := s.loadTransactions(ctx, req)
	if err != nil {
		err = classify(err, "load transactions")
		telemetry.RecordError(span, err)
		return nil, err
	}
	invoices, err := s.invoiceRepo.FindOpenForTenant(ctx, req.TenantID)
	if err != nil {
		err = classify(err, "load open invoices")
		telemetry.RecordError(span, err)
		return nil, err
	}
	candidates, err := s.invoiceCandidates(ctx, req.TenantID, invoices)
	if err != nil {
		err = classify(err, "load parents")
		telemetry.RecordError(span, err)
		return nil, err
	}

	matched := s.matcher.Match(transactions, candidates)
	result := &MatchPaymentsResult{
		AutoApplied:    []AppliedMatch{},
		ReviewRequired: matched.ReviewRequired,
		NoMatch:        lo.Map(matched.NoMatch, func(m finance.TransactionMatch, _ int) uuid.UUID { return m.Transaction.ID }),
		Skipped:        matched.Skipped,
		Failed:         []FailedMatch{},
	}

	for _, m := range matched.AutoMatched {
		best, _ := m.Best()
		score := best.ConfidenceScore
		_, err := s.allocator.Allocate(ctx, AllocateRequest{
			TenantID:      req.TenantID,
			TransactionID: m.Transaction.ID,
			Allocations:   []AllocationLine{{InvoiceID: best.InvoiceID, AmountCents: m.AllocateCents}},
			MatchedBy:     finance.MatchedByAuto,
			Confidence:    &score,
		})
		if err != nil {
			if shared.IsExternal(err) || shared.KindOf(err) == shared.KindInternal {
				telemetry.RecordError(span, err)
				s.logger.Error("auto-match allocation aborted",
					zap.String("tenant_id", req.TenantID.String()),
					zap.String("transaction_id", m.Transaction.ID.String()),
					zap.Int("auto_applied", len(result.AutoApplied)),
					zap.Error(err),
				)
				return result, fmt.Errorf("failed to apply match for transaction %s: %w", m.Transaction.ID, err)
			}
			// The transaction or invoice changed since it was loaded; leave it for the next pass.
			s.logger.Warn("auto-match allocation rejected",
				zap.String("tenant_id", req.TenantID.String()),
				zap.String("transaction_id", m.Transaction.ID.String()),
				zap.String("invoice_id", best.InvoiceID.String()),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, FailedMatch{TransactionID: m.Transaction.ID, InvoiceID: best.InvoiceID, Reason: err.Error()})
			continue
		}
		result.AutoApplied = append(result.AutoApplied, AppliedMatch{
			TransactionID:   m.Transaction.ID,
			InvoiceID:       best.InvoiceID,
			InvoiceNumber:   best.InvoiceNumber,
			AmountCents:     m.AllocateCents,
			ConfidenceScore: best.ConfidenceScore,
			ConfidenceLevel: best.ConfidenceLevel,
			MatchReasons:    best.MatchReasons,
		})
	}

	s.metrics.RecordMatchDecision(ctx, string(finance.DecisionAutoApply), len(result.AutoApplied))
	s.metrics.RecordMatchDecision(ctx, string(finance.DecisionReview), len(result.ReviewRequired))
	s.metrics.RecordMatchDecision(ctx, string(finance.DecisionNoMatch), len(result.NoMatch))
	telemetry.SetAttributes(span,
		"auto_applied", len(result.AutoApplied),
		"review_required", len(result.ReviewRequired),
		"no_match", len(result.NoMatch),
		"skipped", len(result.Skipped),
	)
	s.logger.Info("payment matching completed",
		zap.String("tenant_id", req.TenantID.String()),
		zap.Int("auto_applied", len(result.AutoApplied)),
		zap.Int("review_required", len(result.ReviewRequired)),
		zap.Int("no_match", len(result.NoMatch)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (s *PaymentMatchingService) loadTransactions(ctx context.Context, req MatchPaymentsRequest) ([]finance.Transaction, error) {
	if len(req.TransactionIDs) == 0 {
		return s.transactionRepo.FindUnallocatedCredits(ctx, req.TenantID, nil)
	}
	filter := finance.TransactionFilter{Filter: shared.DefaultFilter(), IDs: lo.Uniq(req.TransactionIDs)}
	filter.PageSize = len(filter.IDs)
	return s.transactionRepo.FindAllForTenant(ctx, req.TenantID, filter)
}

func (s *PaymentMatchingService) invoiceCandidates(ctx context.Context, tenantID uuid.UUID, invoices []finance.Invoice) ([]finance.InvoiceCandidate, error) {
	parentIDs := lo.Uniq(lo.Map(invoices, func(inv finance.Invoice, _ int) uuid.UUID { return inv.ParentID }))
	parents := map[uuid.UUID]partner.Parent{}
	if len(parentIDs) > 0 && s.parentRepo != nil {
		found, err := s.parentRepo.FindByIDsForTenant(ctx, tenantID, parentIDs)
		if err != nil {
			return nil, err
		}
		parents = lo.KeyBy(found, func(p partner.Parent) uuid.UUID { return p.ID })
	}
	return lo.Map(invoices, func(inv finance.Invoice, _ int) finance.InvoiceCandidate {
		p := parents[inv.ParentID]
		return finance.InvoiceCandidate{Invoice: inv, ParentFirstName: p.FirstName, ParentLastName: p.LastName}
	}), nil
}
