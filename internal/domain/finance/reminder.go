package finance

import (
	"fmt"
	"time"

	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/crechebooks/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ReminderStatus represents the delivery state of a payment reminder
type ReminderStatus string

const (
	ReminderStatusPending ReminderStatus = "PENDING"
	ReminderStatusSent    ReminderStatus = "SENT"
	ReminderStatusFailed  ReminderStatus = "FAILED"
)

// IsTerminal returns true once delivery has been attempted
func (s ReminderStatus) IsTerminal() bool {
	return s == ReminderStatusSent || s == ReminderStatusFailed
}

// DeliveryMethod is the channel (or channels) a reminder goes out on
type DeliveryMethod string

const (
	DeliveryMethodEmail    DeliveryMethod = "EMAIL"
	DeliveryMethodWhatsApp DeliveryMethod = "WHATSAPP"
	DeliveryMethodBoth     DeliveryMethod = "BOTH"
)

// IsValid checks if the delivery method is known
func (d DeliveryMethod) IsValid() bool {
	switch d {
	case DeliveryMethodEmail, DeliveryMethodWhatsApp, DeliveryMethodBoth:
		return true
	}
	return false
}

// Channels expands BOTH into its individual channels
func (d DeliveryMethod) Channels() []DeliveryMethod {
	switch d {
	case DeliveryMethodBoth:
		return []DeliveryMethod{DeliveryMethodEmail, DeliveryMethodWhatsApp}
	case DeliveryMethodEmail, DeliveryMethodWhatsApp:
		return []DeliveryMethod{d}
	}
	return nil
}

// Reminder is the audit record of one reminder attempt for an overdue invoice
type Reminder struct {
	shared.TenantEntity
	InvoiceID       uuid.UUID       `json:"invoice_id"`
	ParentID        uuid.UUID       `json:"parent_id"`
	EscalationLevel EscalationLevel `json:"escalation_level"`
	DeliveryMethod  DeliveryMethod  `json:"delivery_method"`
	Status          ReminderStatus  `json:"status"`
	Subject         string          `json:"subject"`
	Content         string          `json:"content"`
	ScheduledFor    time.Time       `json:"scheduled_for"`
	SentAt          *time.Time      `json:"sent_at,omitempty"`
	FailureReason   string          `json:"failure_reason,omitempty"`
	MessageIDs      []string        `json:"message_ids,omitempty"`
}

// NewReminder creates a pending reminder
func NewReminder(
	tenantID, invoiceID, parentID uuid.UUID,
	level EscalationLevel,
	method DeliveryMethod,
	subject, content string,
	scheduledFor time.Time,
) (*Reminder, error) {
	if !level.IsValid() {
		return nil, shared.NewValidationError("INVALID_ESCALATION_LEVEL", fmt.Sprintf("Unknown escalation level %q", level))
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("INVALID_DELIVERY_METHOD", fmt.Sprintf("Unknown delivery method %q", method))
	}
	return &Reminder{
		TenantEntity:    shared.NewTenantEntity(tenantID),
		InvoiceID:       invoiceID,
		ParentID:        parentID,
		EscalationLevel: level,
		DeliveryMethod:  method,
		Status:          ReminderStatusPending,
		Subject:         subject,
		Content:         content,
		ScheduledFor:    scheduledFor,
	}, nil
}

// MarkSent records successful delivery on at least one channel.
// failureReason keeps the errors of channels that did not succeed.
func (r *Reminder) MarkSent(at time.Time, messageIDs []string, failureReason string) error {
	if r.Status.IsTerminal() {
		return shared.NewConflictError("INVALID_STATE", fmt.Sprintf("Reminder already %s", r.Status))
	}
	sentAt := at
	r.Status = ReminderStatusSent
	r.SentAt = &sentAt
	r.MessageIDs = messageIDs
	r.FailureReason = failureReason
	r.UpdatedAt = at
	return nil
}

// MarkFailed records that every channel failed
func (r *Reminder) MarkFailed(at time.Time, reason string) error {
	if r.Status.IsTerminal() {
		return shared.NewConflictError("INVALID_STATE", fmt.Sprintf("Reminder already %s", r.Status))
	}
	r.Status = ReminderStatusFailed
	r.FailureReason = reason
	r.UpdatedAt = at
	return nil
}

// ReminderContent is the data a reminder template is rendered with
type ReminderContent struct {
	Level             EscalationLevel
	ParentName        string
	ChildName         string
	InvoiceNumber     string
	Amount            valueobject.Money
	DaysOverdue       int
	DueDate           time.Time
	CrecheName        string
	CrecheEmail       string
	CrechePhone       string
	BankName          string
	BankAccountNumber string
	BankBranchCode    string
}
