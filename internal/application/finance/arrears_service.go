package finance

import (
	"context"
	"sort"
	"time"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/domain/partner"
	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/crechebooks/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// DefaultTopDebtorsLimit is used when a request does not set one
const DefaultTopDebtorsLimit = 10

// arrearsStatuses are the issued statuses that can carry an unpaid balance
var arrearsStatuses = []finance.InvoiceStatus{
	finance.InvoiceStatusSent,
	finance.InvoiceStatusViewed,
	finance.InvoiceStatusPartiallyPaid,
	finance.InvoiceStatusOverdue,
}

// ArrearsService derives aging and debtor rankings from current invoice state
type ArrearsService struct {
	invoiceRepo finance.InvoiceRepository
	parentRepo  partner.ParentRepository
	logger      *zap.Logger
	location    *time.Location
	now         func() time.Time
}

// ArrearsServiceOption configures an ArrearsService
type ArrearsServiceOption func(*ArrearsService)

// WithArrearsLocation sets the business timezone used to count days overdue
func WithArrearsLocation(loc *time.Location) ArrearsServiceOption {
	return func(s *ArrearsService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithArrearsClock overrides the time source
func WithArrearsClock(now func() time.Time) ArrearsServiceOption {
	return func(s *ArrearsService) {
		s.now = now
	}
}

// WithArrearsLogger sets the logger
func WithArrearsLogger(logger *zap.Logger) ArrearsServiceOption {
	return func(s *ArrearsService) {
		s.logger = logger
	}
}

// NewArrearsService creates a new ArrearsService
func NewArrearsService(invoiceRepo finance.InvoiceRepository, parentRepo partner.ParentRepository, opts ...ArrearsServiceOption) *ArrearsService {
	s := &ArrearsService{
		invoiceRepo: invoiceRepo,
		parentRepo:  parentRepo,
		logger:      zap.NewNop(),
		location:    time.UTC,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ArrearsRequest represents a request for an arrears report
type ArrearsRequest struct {
	TenantID        uuid.UUID  `json:"tenant_id" validate:"required"`
	AsOf            *time.Time `json:"as_of"`
	ParentID        *uuid.UUID `json:"parent_id"`
	MinAmountCents  int64      `json:"min_amount_cents" validate:"gte=0"`
	TopDebtorsLimit int        `json:"top_debtors_limit" validate:"gte=0,lte=100"`
}

// ArrearsInvoice is one unpaid invoice in the report
type ArrearsInvoice struct {
	InvoiceID        uuid.UUID             `json:"invoice_id"`
	InvoiceNumber    string                `json:"invoice_number"`
	ParentID         uuid.UUID             `json:"parent_id"`
	ParentName       string                `json:"parent_name"`
	ChildID          uuid.UUID             `json:"child_id"`
	Status           finance.InvoiceStatus `json:"status"`
	DueDate          time.Time             `json:"due_date"`
	TotalCents       int64                 `json:"total_cents"`
	AmountPaidCents  int64                 `json:"amount_paid_cents"`
	OutstandingCents int64                 `json:"outstanding_cents"`
	DaysOverdue      int                   `json:"days_overdue"`
	AgingBucket      finance.AgingBucket   `json:"aging_bucket"`
}

// ArrearsSummary totals the report
type ArrearsSummary struct {
	TotalOutstandingCents int64                `json:"total_outstanding_cents"`
	TotalInvoices         int                  `json:"total_invoices"`
	Aging                 finance.AgingSummary `json:"aging"`
}

// Debtor is one parent's combined outstanding balance
type Debtor struct {
	ParentID          uuid.UUID `json:"parent_id"`
	ParentName        string    `json:"parent_name"`
	OutstandingCents  int64     `json:"outstanding_cents"`
	InvoiceCount      int       `json:"invoice_count"`
	OldestDaysOverdue int       `json:"oldest_days_overdue"`
}

// ArrearsReport is the full arrears picture of a tenant
type ArrearsReport struct {
	AsOf       time.Time        `json:"as_of"`
	Invoices   []ArrearsInvoice `json:"invoices"`
	Summary    ArrearsSummary   `json:"summary"`
	TopDebtors []Debtor         `json:"top_debtors"`
}

// GetArrearsReport lists unpaid issued invoices with their age, totals them per aging
// bucket and ranks parents by outstanding balance
func (s *ArrearsService) GetArrearsReport(ctx context.Context, req ArrearsRequest) (*ArrearsReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "arrears", "get_report")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, req.TenantID.String())

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	asOf := s.now()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}
	asOf = asOf.In(s.location)

	filter := finance.InvoiceFilter{
		Filter:   shared.Filter{OrderBy: "due_date", OrderDir: "asc"},
		ParentID: req.ParentID,
		Statuses: arrearsStatuses,
		Unpaid:   true,
	}
	invoices, err := s.invoiceRepo.FindAllForTenant(ctx, req.TenantID, filter)
	if err != nil {
		err = classify(err, "load arrears invoices")
		telemetry.RecordError(span, err)
		return nil, err
	}

	names, err := s.parentNames(ctx, req.TenantID, invoices)
	if err != nil {
		err = classify(err, "load parents")
		telemetry.RecordError(span, err)
		return nil, err
	}

	rows := make([]ArrearsInvoice, 0, len(invoices))
	for i := range invoices {
		inv := &invoices[i]
		if !inv.Status.InArrearsScope() || inv.IsFullyPaid() {
			continue
		}
		outstanding := inv.OutstandingCents()
		if outstanding < req.MinAmountCents {
			continue
		}
		days := inv.DaysOverdue(asOf)
		rows = append(rows, ArrearsInvoice{
			InvoiceID:        inv.ID,
			InvoiceNumber:    inv.InvoiceNumber,
			ParentID:         inv.ParentID,
			ParentName:       names[inv.ParentID],
			ChildID:          inv.ChildID,
			Status:           inv.Status,
			DueDate:          inv.DueDate,
			TotalCents:       inv.TotalCents,
			AmountPaidCents:  inv.AmountPaidCents,
			OutstandingCents: outstanding,
			DaysOverdue:      days,
			AgingBucket:      finance.AgingBucketForDays(days),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].DaysOverdue != rows[j].DaysOverdue {
			return rows[i].DaysOverdue > rows[j].DaysOverdue
		}
		return rows[i].InvoiceNumber < rows[j].InvoiceNumber
	})

	report := &ArrearsReport{
		AsOf:       asOf,
		Invoices:   rows,
		Summary:    summarize(rows),
		TopDebtors: topDebtors(rows, req.TopDebtorsLimit),
	}
	telemetry.SetAttributes(span,
		"total_invoices", report.Summary.TotalInvoices,
		"total_outstanding_cents", report.Summary.TotalOutstandingCents,
	)
	return report, nil
}

func (s *ArrearsService) parentNames(ctx context.Context, tenantID uuid.UUID, invoices []finance.Invoice) (map[uuid.UUID]string, error) {
	names := map[uuid.UUID]string{}
	if s.parentRepo == nil || len(invoices) == 0 {
		return names, nil
	}
	ids := lo.Uniq(lo.Map(invoices, func(inv finance.Invoice, _ int) uuid.UUID { return inv.ParentID }))
	parents, err := s.parentRepo.FindByIDsForTenant(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	for i := range parents {
		names[parents[i].ID] = parents[i].FullName()
	}
	return names, nil
}

func summarize(rows []ArrearsInvoice) ArrearsSummary {
	summary := ArrearsSummary{TotalInvoices: len(rows)}
	for _, r := range rows {
		summary.TotalOutstandingCents += r.OutstandingCents
		summary.Aging.Add(r.DaysOverdue, r.OutstandingCents)
	}
	return summary
}

// topDebtors ranks parents by outstanding balance, then invoice count, then parent id
func topDebtors(rows []ArrearsInvoice, limit int) []Debtor {
	if limit <= 0 {
		limit = DefaultTopDebtorsLimit
	}
	grouped := lo.GroupBy(rows, func(r ArrearsInvoice) uuid.UUID { return r.ParentID })
	debtors := make([]Debtor, 0, len(grouped))
	for parentID, invoices := range grouped {
		debtors = append(debtors, Debtor{
			ParentID:          parentID,
			ParentName:        invoices[0].ParentName,
			OutstandingCents:  lo.SumBy(invoices, func(r ArrearsInvoice) int64 { return r.OutstandingCents }),
			InvoiceCount:      len(invoices),
			OldestDaysOverdue: lo.Max(lo.Map(invoices, func(r ArrearsInvoice, _ int) int { return r.DaysOverdue })),
		})
	}
	sort.Slice(debtors, func(i, j int) bool {
		a, b := debtors[i], debtors[j]
		if a.OutstandingCents != b.OutstandingCents {
			return a.OutstandingCents > b.OutstandingCents
		}
		if a.InvoiceCount != b.InvoiceCount {
			return a.InvoiceCount > b.InvoiceCount
		}
		return a.ParentID.String() < b.ParentID.String()
	})
	if len(debtors) > limit {
		debtors = debtors[:limit]
	}
	return debtors
}
