package finance

import (
	"time"

	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Event type names
const (
	EventTypePaymentAllocated        = "PaymentAllocated"
	EventTypeReconciliationCompleted = "ReconciliationCompleted"
	EventTypeReminderSent            = "ReminderSent"
	EventTypeReminderFailed          = "ReminderFailed"
)

// PaymentAllocatedEvent is raised when part of a bank credit is applied to an invoice
type PaymentAllocatedEvent struct {
	shared.BaseDomainEvent
	TransactionID    uuid.UUID     `json:"transaction_id"`
	InvoiceID        uuid.UUID     `json:"invoice_id"`
	InvoiceNumber    string        `json:"invoice_number"`
	AmountCents      int64         `json:"amount_cents"`
	MatchType        MatchType     `json:"match_type"`
	MatchedBy        MatchedBy     `json:"matched_by"`
	InvoiceStatus    InvoiceStatus `json:"invoice_status"`
	OutstandingCents int64         `json:"outstanding_cents"`
}

// NewPaymentAllocatedEvent creates a PaymentAllocatedEvent for a payment and the invoice it updated
func NewPaymentAllocatedEvent(p *Payment, inv *Invoice, at time.Time) *PaymentAllocatedEvent {
	return &PaymentAllocatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypePaymentAllocated, "Payment", p.ID, p.TenantID, at),
		TransactionID:    p.TransactionID,
		InvoiceID:        inv.ID,
		InvoiceNumber:    inv.InvoiceNumber,
		AmountCents:      p.AmountCents,
		MatchType:        p.MatchType,
		MatchedBy:        p.MatchedBy,
		InvoiceStatus:    inv.Status,
		OutstandingCents: inv.OutstandingCents(),
	}
}

// ReconciliationCompletedEvent is raised when a bank account period has been reconciled,
// whether it balanced or not
type ReconciliationCompletedEvent struct {
	shared.BaseDomainEvent
	BankAccount      string               `json:"bank_account"`
	PeriodStart      time.Time            `json:"period_start"`
	PeriodEnd        time.Time            `json:"period_end"`
	Status           ReconciliationStatus `json:"status"`
	DiscrepancyCents int64                `json:"discrepancy_cents"`
	MatchedCount     int                  `json:"matched_count"`
}

// NewReconciliationCompletedEvent creates a ReconciliationCompletedEvent
func NewReconciliationCompletedEvent(r *Reconciliation, at time.Time) *ReconciliationCompletedEvent {
	return &ReconciliationCompletedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeReconciliationCompleted, "Reconciliation", r.ID, r.TenantID, at),
		BankAccount:      r.BankAccount,
		PeriodStart:      r.PeriodStart,
		PeriodEnd:        r.PeriodEnd,
		Status:           r.Status,
		DiscrepancyCents: r.DiscrepancyCents,
		MatchedCount:     r.MatchedCount,
	}
}

// ReminderRecordedEvent is raised once a reminder attempt has been stored.
// Its type is ReminderSent or ReminderFailed depending on the delivery outcome.
type ReminderRecordedEvent struct {
	shared.BaseDomainEvent
	InvoiceID       uuid.UUID       `json:"invoice_id"`
	ParentID        uuid.UUID       `json:"parent_id"`
	EscalationLevel EscalationLevel `json:"escalation_level"`
	DeliveryMethod  DeliveryMethod  `json:"delivery_method"`
	Status          ReminderStatus  `json:"status"`
	FailureReason   string          `json:"failure_reason,omitempty"`
}

// NewReminderRecordedEvent creates a ReminderRecordedEvent
func NewReminderRecordedEvent(r *Reminder, at time.Time) *ReminderRecordedEvent {
	eventType := EventTypeReminderFailed
	if r.Status == ReminderStatusSent {
		eventType = EventTypeReminderSent
	}
	return &ReminderRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Reminder", r.ID, r.TenantID, at),
		InvoiceID:       r.InvoiceID,
		ParentID:        r.ParentID,
		EscalationLevel: r.EscalationLevel,
		DeliveryMethod:  r.DeliveryMethod,
		Status:          r.Status,
		FailureReason:   r.FailureReason,
	}
}
