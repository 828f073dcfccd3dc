package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/crechebooks/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// InvoiceStatus represents the status of a fee invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusSent          InvoiceStatus = "SENT"
	InvoiceStatusViewed        InvoiceStatus = "VIEWED"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusViewed, InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further payment can be recorded
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// CanApplyPayment returns true if payments can be applied in this status.
// Drafts have not been issued to the parent yet.
func (s InvoiceStatus) CanApplyPayment() bool {
	switch s {
	case InvoiceStatusSent, InvoiceStatusViewed, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

// InArrearsScope reports whether an invoice in this status counts towards arrears
func (s InvoiceStatus) InArrearsScope() bool {
	return s.CanApplyPayment()
}

// Invoice is a monthly fee invoice issued to a parent for a child's enrolment
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber      string        `json:"invoice_number"`
	ParentID           uuid.UUID     `json:"parent_id"`
	ChildID            uuid.UUID     `json:"child_id"`
	BillingPeriodStart time.Time     `json:"billing_period_start"`
	BillingPeriodEnd   time.Time     `json:"billing_period_end"`
	IssueDate          time.Time     `json:"issue_date"`
	DueDate            time.Time     `json:"due_date"`
	TotalCents         int64         `json:"total_cents"`
	AmountPaidCents    int64         `json:"amount_paid_cents"`
	Status             InvoiceStatus `json:"status"`
	PaidAt             *time.Time    `json:"paid_at"`
}

// NewInvoice creates a new draft invoice
func NewInvoice(
	tenantID uuid.UUID,
	invoiceNumber string,
	parentID uuid.UUID,
	childID uuid.UUID,
	periodStart, periodEnd time.Time,
	dueDate time.Time,
	total valueobject.Money,
) (*Invoice, error) {
	if strings.TrimSpace(invoiceNumber) == "" {
		return nil, shared.NewValidationError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewValidationError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 50 characters")
	}
	if parentID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_PARENT", "Parent ID cannot be empty")
	}
	if !total.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Invoice total must be positive")
	}
	if periodEnd.Before(periodStart) {
		return nil, shared.NewValidationError("INVALID_PERIOD", "Billing period end cannot precede its start")
	}

	return &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceNumber:       invoiceNumber,
		ParentID:            parentID,
		ChildID:             childID,
		BillingPeriodStart:  periodStart,
		BillingPeriodEnd:    periodEnd,
		IssueDate:           time.Now(),
		DueDate:             dueDate,
		TotalCents:          total.Cents(),
		Status:              InvoiceStatusDraft,
	}, nil
}

// Total returns the invoice total as Money
func (i *Invoice) Total() valueobject.Money {
	return valueobject.NewMoneyFromCents(i.TotalCents)
}

// AmountPaid returns the amount already paid as Money
func (i *Invoice) AmountPaid() valueobject.Money {
	return valueobject.NewMoneyFromCents(i.AmountPaidCents)
}

// OutstandingCents returns the unpaid balance, never negative
func (i *Invoice) OutstandingCents() int64 {
	if i.AmountPaidCents >= i.TotalCents {
		return 0
	}
	return i.TotalCents - i.AmountPaidCents
}

// IsFullyPaid returns true when the paid amount covers the total
func (i *Invoice) IsFullyPaid() bool {
	return i.AmountPaidCents >= i.TotalCents
}

// IsOpen reports whether the invoice may receive a payment match
func (i *Invoice) IsOpen() bool {
	return i.Status.CanApplyPayment() && !i.IsFullyPaid()
}

// Issue moves a draft invoice to SENT
func (i *Invoice) Issue() error {
	if i.Status != InvoiceStatusDraft {
		return shared.NewConflictError("INVALID_STATE", fmt.Sprintf("Cannot issue invoice in %s status", i.Status))
	}
	i.Status = InvoiceStatusSent
	i.UpdatedAt = time.Now()
	i.IncrementVersion()
	return nil
}

// StatusForPaidAmount derives the payment status from the paid/total pair.
// current is returned unchanged when nothing has been paid.
func StatusForPaidAmount(paidCents, totalCents int64, current InvoiceStatus) InvoiceStatus {
	switch {
	case paidCents >= totalCents:
		return InvoiceStatusPaid
	case paidCents > 0:
		return InvoiceStatusPartiallyPaid
	default:
		return current
	}
}

// ApplyPayment records a payment against the invoice.
// The amount may not exceed the outstanding balance.
func (i *Invoice) ApplyPayment(amount valueobject.Money, at time.Time) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if !i.Status.CanApplyPayment() {
		return shared.NewConflictError("INVALID_STATE", fmt.Sprintf("Cannot apply payment to invoice %s in %s status", i.InvoiceNumber, i.Status))
	}
	if amount.Cents() > i.OutstandingCents() {
		return shared.NewConflictError("EXCEEDS_OUTSTANDING", fmt.Sprintf("Payment amount %s exceeds outstanding amount %s on invoice %s",
			amount, valueobject.NewMoneyFromCents(i.OutstandingCents()), i.InvoiceNumber))
	}

	i.AmountPaidCents += amount.Cents()
	i.Status = StatusForPaidAmount(i.AmountPaidCents, i.TotalCents, i.Status)
	if i.Status == InvoiceStatusPaid {
		paidAt := at
		i.PaidAt = &paidAt
	}
	i.UpdatedAt = at
	i.IncrementVersion()
	return nil
}

// DaysOverdue returns the whole calendar days between the due date and asOf, never negative
func (i *Invoice) DaysOverdue(asOf time.Time) int {
	days := WholeDaysBetween(i.DueDate, asOf)
	if days < 0 {
		return 0
	}
	return days
}

// WholeDaysBetween counts calendar days from a to b.
// a is a calendar date and is read as stored; b is read in its own location.
func WholeDaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
