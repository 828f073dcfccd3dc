package models

import (
	"time"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/google/uuid"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	TenantAggregateModel
	InvoiceNumber      string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_tenant_number,priority:2"`
	ParentID           uuid.UUID             `gorm:"type:uuid;not null;index"`
	ChildID            uuid.UUID             `gorm:"type:uuid;index"`
	BillingPeriodStart time.Time             `gorm:"type:date;not null"`
	BillingPeriodEnd   time.Time             `gorm:"type:date;not null"`
	IssueDate          time.Time             `gorm:"not null"`
	DueDate            time.Time             `gorm:"type:date;not null;index"`
	TotalCents         int64                 `gorm:"not null"`
	AmountPaidCents    int64                 `gorm:"not null;default:0"`
	Status             finance.InvoiceStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	PaidAt             *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice entity.
func (m *InvoiceModel) ToDomain() *finance.Invoice {
	return &finance.Invoice{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		InvoiceNumber:       m.InvoiceNumber,
		ParentID:            m.ParentID,
		ChildID:             m.ChildID,
		BillingPeriodStart:  m.BillingPeriodStart,
		BillingPeriodEnd:    m.BillingPeriodEnd,
		IssueDate:           m.IssueDate,
		DueDate:             m.DueDate,
		TotalCents:          m.TotalCents,
		AmountPaidCents:     m.AmountPaidCents,
		Status:              m.Status,
		PaidAt:              m.PaidAt,
	}
}

// FromDomain populates the persistence model from a domain Invoice entity.
func (m *InvoiceModel) FromDomain(inv *finance.Invoice) {
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.ParentID = inv.ParentID
	m.ChildID = inv.ChildID
	m.BillingPeriodStart = inv.BillingPeriodStart
	m.BillingPeriodEnd = inv.BillingPeriodEnd
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.TotalCents = inv.TotalCents
	m.AmountPaidCents = inv.AmountPaidCents
	m.Status = inv.Status
	m.PaidAt = inv.PaidAt
}

// InvoiceModelFromDomain creates a new persistence model from domain.
func InvoiceModelFromDomain(inv *finance.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// BankTransactionModel is the persistence model for the Transaction aggregate root.
type BankTransactionModel struct {
	TenantAggregateModel
	BankAccount    string                    `gorm:"type:varchar(50);not null;index:idx_bank_tx_account_date,priority:2"`
	Date           time.Time                 `gorm:"type:date;not null;index:idx_bank_tx_account_date,priority:3"`
	Description    string                    `gorm:"type:varchar(500)"`
	PayeeName      string                    `gorm:"type:varchar(200)"`
	Reference      string                    `gorm:"type:varchar(100)"`
	AmountCents    int64                     `gorm:"not null"`
	IsCredit       bool                      `gorm:"not null"`
	AllocatedCents int64                     `gorm:"not null;default:0"`
	Status         finance.TransactionStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	IsReconciled   bool                      `gorm:"not null;default:false"`
	ReconciledAt   *time.Time
	DeletedAt      *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (BankTransactionModel) TableName() string {
	return "bank_transactions"
}

// ToDomain converts the persistence model to a domain Transaction entity.
func (m *BankTransactionModel) ToDomain() *finance.Transaction {
	return &finance.Transaction{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		BankAccount:         m.BankAccount,
		Date:                m.Date,
		Description:         m.Description,
		PayeeName:           m.PayeeName,
		Reference:           m.Reference,
		AmountCents:         m.AmountCents,
		IsCredit:            m.IsCredit,
		AllocatedCents:      m.AllocatedCents,
		Status:              m.Status,
		IsReconciled:        m.IsReconciled,
		ReconciledAt:        m.ReconciledAt,
		DeletedAt:           m.DeletedAt,
	}
}

// FromDomain populates the persistence model from a domain Transaction entity.
func (m *BankTransactionModel) FromDomain(tx *finance.Transaction) {
	m.FromDomainTenantAggregateRoot(tx.TenantAggregateRoot)
	m.BankAccount = tx.BankAccount
	m.Date = tx.Date
	m.Description = tx.Description
	m.PayeeName = tx.PayeeName
	m.Reference = tx.Reference
	m.AmountCents = tx.AmountCents
	m.IsCredit = tx.IsCredit
	m.AllocatedCents = tx.AllocatedCents
	m.Status = tx.Status
	m.IsReconciled = tx.IsReconciled
	m.ReconciledAt = tx.ReconciledAt
	m.DeletedAt = tx.DeletedAt
}

// BankTransactionModelFromDomain creates a new persistence model from domain.
func BankTransactionModelFromDomain(tx *finance.Transaction) *BankTransactionModel {
	m := &BankTransactionModel{}
	m.FromDomain(tx)
	return m
}

// PaymentModel is the persistence model for an append-only Payment allocation.
type PaymentModel struct {
	TenantEntityModel
	TransactionID   uuid.UUID         `gorm:"type:uuid;not null;index"`
	InvoiceID       uuid.UUID         `gorm:"type:uuid;not null;index"`
	AmountCents     int64             `gorm:"not null"`
	PaidAt          time.Time         `gorm:"type:date;not null"`
	MatchType       finance.MatchType `gorm:"type:varchar(20);not null"`
	MatchedBy       finance.MatchedBy `gorm:"type:varchar(20);not null"`
	MatchConfidence *int
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *finance.Payment {
	return &finance.Payment{
		TenantEntity:    m.ToTenantEntity(),
		TransactionID:   m.TransactionID,
		InvoiceID:       m.InvoiceID,
		AmountCents:     m.AmountCents,
		PaidAt:          m.PaidAt,
		MatchType:       m.MatchType,
		MatchedBy:       m.MatchedBy,
		MatchConfidence: m.MatchConfidence,
	}
}

// PaymentModelFromDomain creates a new persistence model from domain.
func PaymentModelFromDomain(p *finance.Payment) *PaymentModel {
	m := &PaymentModel{
		TransactionID:   p.TransactionID,
		InvoiceID:       p.InvoiceID,
		AmountCents:     p.AmountCents,
		PaidAt:          p.PaidAt,
		MatchType:       p.MatchType,
		MatchedBy:       p.MatchedBy,
		MatchConfidence: p.MatchConfidence,
	}
	m.FromDomainTenantEntity(p.TenantEntity)
	return m
}

// ReconciliationModel is the persistence model for a Reconciliation record.
// Postgres additionally rejects overlapping periods per account with an exclusion constraint.
type ReconciliationModel struct {
	TenantEntityModel
	BankAccount            string                       `gorm:"type:varchar(50);not null;index:idx_reconciliation_account,priority:2"`
	PeriodStart            time.Time                    `gorm:"type:date;not null;index:idx_reconciliation_account,priority:3"`
	PeriodEnd              time.Time                    `gorm:"type:date;not null"`
	OpeningBalanceCents    int64                        `gorm:"not null"`
	ClosingBalanceCents    int64                        `gorm:"not null"`
	CalculatedBalanceCents int64                        `gorm:"not null"`
	DiscrepancyCents       int64                        `gorm:"not null"`
	Status                 finance.ReconciliationStatus `gorm:"type:varchar(20);not null;index"`
	MatchedCount           int                          `gorm:"not null;default:0"`
	ReconciledBy           *uuid.UUID                   `gorm:"type:uuid"`
	ReconciledAt           *time.Time
}

// TableName returns the table name for GORM
func (ReconciliationModel) TableName() string {
	return "reconciliations"
}

// ToDomain converts the persistence model to a domain Reconciliation.
func (m *ReconciliationModel) ToDomain() *finance.Reconciliation {
	return &finance.Reconciliation{
		TenantEntity:           m.ToTenantEntity(),
		BankAccount:            m.BankAccount,
		PeriodStart:            m.PeriodStart,
		PeriodEnd:              m.PeriodEnd,
		OpeningBalanceCents:    m.OpeningBalanceCents,
		ClosingBalanceCents:    m.ClosingBalanceCents,
		CalculatedBalanceCents: m.CalculatedBalanceCents,
		DiscrepancyCents:       m.DiscrepancyCents,
		Status:                 m.Status,
		MatchedCount:           m.MatchedCount,
		ReconciledBy:           m.ReconciledBy,
		ReconciledAt:           m.ReconciledAt,
	}
}

// ReconciliationModelFromDomain creates a new persistence model from domain.
func ReconciliationModelFromDomain(rec *finance.Reconciliation) *ReconciliationModel {
	m := &ReconciliationModel{
		BankAccount:            rec.BankAccount,
		PeriodStart:            rec.PeriodStart,
		PeriodEnd:              rec.PeriodEnd,
		OpeningBalanceCents:    rec.OpeningBalanceCents,
		ClosingBalanceCents:    rec.ClosingBalanceCents,
		CalculatedBalanceCents: rec.CalculatedBalanceCents,
		DiscrepancyCents:       rec.DiscrepancyCents,
		Status:                 rec.Status,
		MatchedCount:           rec.MatchedCount,
		ReconciledBy:           rec.ReconciledBy,
		ReconciledAt:           rec.ReconciledAt,
	}
	m.FromDomainTenantEntity(rec.TenantEntity)
	return m
}

// ReminderModel is the persistence model for a Reminder attempt.
// Provider message ids are stored as a JSON array.
type ReminderModel struct {
	TenantEntityModel
	InvoiceID       uuid.UUID               `gorm:"type:uuid;not null;index:idx_reminder_invoice_sent,priority:1"`
	ParentID        uuid.UUID               `gorm:"type:uuid;not null;index"`
	EscalationLevel finance.EscalationLevel `gorm:"type:varchar(20);not null"`
	DeliveryMethod  finance.DeliveryMethod  `gorm:"type:varchar(20);not null"`
	Status          finance.ReminderStatus  `gorm:"type:varchar(20);not null;index"`
	Subject         string                  `gorm:"type:varchar(300)"`
	Content         string                  `gorm:"type:text"`
	ScheduledFor    time.Time               `gorm:"not null"`
	SentAt          *time.Time              `gorm:"index:idx_reminder_invoice_sent,priority:2"`
	FailureReason   string                  `gorm:"type:varchar(1000)"`
	MessageIDs      []string                `gorm:"serializer:json;type:text"`
}

// TableName returns the table name for GORM
func (ReminderModel) TableName() string {
	return "reminders"
}

// ToDomain converts the persistence model to a domain Reminder.
func (m *ReminderModel) ToDomain() *finance.Reminder {
	return &finance.Reminder{
		TenantEntity:    m.ToTenantEntity(),
		InvoiceID:       m.InvoiceID,
		ParentID:        m.ParentID,
		EscalationLevel: m.EscalationLevel,
		DeliveryMethod:  m.DeliveryMethod,
		Status:          m.Status,
		Subject:         m.Subject,
		Content:         m.Content,
		ScheduledFor:    m.ScheduledFor,
		SentAt:          m.SentAt,
		FailureReason:   m.FailureReason,
		MessageIDs:      m.MessageIDs,
	}
}

// ReminderModelFromDomain creates a new persistence model from domain.
func ReminderModelFromDomain(r *finance.Reminder) *ReminderModel {
	m := &ReminderModel{
		InvoiceID:       r.InvoiceID,
		ParentID:        r.ParentID,
		EscalationLevel: r.EscalationLevel,
		DeliveryMethod:  r.DeliveryMethod,
		Status:          r.Status,
		Subject:         r.Subject,
		Content:         r.Content,
		ScheduledFor:    r.ScheduledFor,
		SentAt:          r.SentAt,
		FailureReason:   r.FailureReason,
		MessageIDs:      r.MessageIDs,
	}
	m.FromDomainTenantEntity(r.TenantEntity)
	return m
}
