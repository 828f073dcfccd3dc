package finance

import (
	"time"

	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/crechebooks/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// MatchType describes how a payment was linked to its invoice
type MatchType string

const (
	MatchTypeExact   MatchType = "EXACT"
	MatchTypePartial MatchType = "PARTIAL"
	MatchTypeManual  MatchType = "MANUAL"
)

// MatchedBy records who made the allocation decision
type MatchedBy string

const (
	MatchedByAuto MatchedBy = "AI_AUTO"
	MatchedByUser MatchedBy = "USER"
)

// IsValid checks if the value is a known MatchedBy
func (m MatchedBy) IsValid() bool {
	return m == MatchedByAuto || m == MatchedByUser
}

// Payment is an append-only allocation of part of a bank transaction to one invoice
type Payment struct {
	shared.TenantEntity
	TransactionID   uuid.UUID `json:"transaction_id"`
	InvoiceID       uuid.UUID `json:"invoice_id"`
	AmountCents     int64     `json:"amount_cents"`
	PaidAt          time.Time `json:"paid_at"`
	MatchType       MatchType `json:"match_type"`
	MatchedBy       MatchedBy `json:"matched_by"`
	MatchConfidence *int      `json:"match_confidence,omitempty"`
}

// NewPayment creates a payment record for an allocation line
func NewPayment(
	tenantID, transactionID, invoiceID uuid.UUID,
	amount valueobject.Money,
	paidAt time.Time,
	matchType MatchType,
	matchedBy MatchedBy,
	confidence *int,
) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if transactionID == uuid.Nil || invoiceID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_REFERENCE", "Payment must reference a transaction and an invoice")
	}
	return &Payment{
		TenantEntity:    shared.NewTenantEntity(tenantID),
		TransactionID:   transactionID,
		InvoiceID:       invoiceID,
		AmountCents:     amount.Cents(),
		PaidAt:          paidAt,
		MatchType:       matchType,
		MatchedBy:       matchedBy,
		MatchConfidence: confidence,
	}, nil
}

// Amount returns the payment amount as Money
func (p *Payment) Amount() valueobject.Money {
	return valueobject.NewMoneyFromCents(p.AmountCents)
}
