package finance

import (
	"strings"
	"time"

	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ReconciliationStatus is the outcome of a bank reconciliation run
type ReconciliationStatus string

const (
	ReconciliationStatusReconciled  ReconciliationStatus = "RECONCILED"
	ReconciliationStatusDiscrepancy ReconciliationStatus = "DISCREPANCY"
)

// String returns the string representation of ReconciliationStatus
func (s ReconciliationStatus) String() string {
	return string(s)
}

// BalanceToleranceCents is the largest discrepancy still accepted as balanced
const BalanceToleranceCents int64 = 1

// BalanceCalculation is the result of applying a period's transactions to its opening balance
type BalanceCalculation struct {
	OpeningBalanceCents    int64                `json:"opening_balance_cents"`
	ClosingBalanceCents    int64                `json:"closing_balance_cents"`
	TotalCreditsCents      int64                `json:"total_credits_cents"`
	TotalDebitsCents       int64                `json:"total_debits_cents"`
	CalculatedBalanceCents int64                `json:"calculated_balance_cents"`
	DiscrepancyCents       int64                `json:"discrepancy_cents"`
	TransactionCount       int                  `json:"transaction_count"`
	Status                 ReconciliationStatus `json:"status"`
}

// IsBalanced reports whether the discrepancy is within tolerance
func (b BalanceCalculation) IsBalanced() bool {
	return b.Status == ReconciliationStatusReconciled
}

// CalculateBalance verifies opening + credits - debits against the reported closing balance.
// Deleted transactions are ignored.
func CalculateBalance(openingCents, closingCents int64, transactions []Transaction) BalanceCalculation {
	calc := BalanceCalculation{
		OpeningBalanceCents: openingCents,
		ClosingBalanceCents: closingCents,
	}
	for i := range transactions {
		tx := &transactions[i]
		if tx.IsDeleted() {
			continue
		}
		if tx.IsCredit {
			calc.TotalCreditsCents += tx.AmountCents
		} else {
			calc.TotalDebitsCents += tx.AmountCents
		}
		calc.TransactionCount++
	}
	calc.CalculatedBalanceCents = openingCents + calc.TotalCreditsCents - calc.TotalDebitsCents
	calc.DiscrepancyCents = closingCents - calc.CalculatedBalanceCents

	calc.Status = ReconciliationStatusDiscrepancy
	if abs64(calc.DiscrepancyCents) <= BalanceToleranceCents {
		calc.Status = ReconciliationStatusReconciled
	}
	return calc
}

// ValidatePeriod checks a reconciliation period and bank account
func ValidatePeriod(bankAccount string, start, end time.Time) error {
	if strings.TrimSpace(bankAccount) == "" {
		return shared.NewValidationError("INVALID_BANK_ACCOUNT", "Bank account cannot be empty")
	}
	if start.IsZero() || end.IsZero() {
		return shared.NewValidationError("INVALID_PERIOD", "Period start and end are required")
	}
	if end.Before(start) {
		return shared.NewValidationError("INVALID_PERIOD", "Period end cannot precede period start")
	}
	return nil
}

// PeriodsOverlap reports whether two inclusive date ranges share at least one day
func PeriodsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

// Reconciliation is the immutable audit record of one bank account period check
type Reconciliation struct {
	shared.TenantEntity
	BankAccount            string               `json:"bank_account"`
	PeriodStart            time.Time            `json:"period_start"`
	PeriodEnd              time.Time            `json:"period_end"`
	OpeningBalanceCents    int64                `json:"opening_balance_cents"`
	ClosingBalanceCents    int64                `json:"closing_balance_cents"`
	CalculatedBalanceCents int64                `json:"calculated_balance_cents"`
	DiscrepancyCents       int64                `json:"discrepancy_cents"`
	Status                 ReconciliationStatus `json:"status"`
	MatchedCount           int                  `json:"matched_count"`
	ReconciledBy           *uuid.UUID           `json:"reconciled_by,omitempty"`
	ReconciledAt           *time.Time           `json:"reconciled_at,omitempty"`
}

// NewReconciliation records a balance calculation for a bank account period.
// matchedCount is the number of transactions sealed by this run (zero on discrepancy).
func NewReconciliation(
	tenantID uuid.UUID,
	bankAccount string,
	start, end time.Time,
	calc BalanceCalculation,
	matchedCount int,
	reconciledBy *uuid.UUID,
	at time.Time,
) (*Reconciliation, error) {
	if err := ValidatePeriod(bankAccount, start, end); err != nil {
		return nil, err
	}
	rec := &Reconciliation{
		TenantEntity:           shared.NewTenantEntity(tenantID),
		BankAccount:            bankAccount,
		PeriodStart:            start,
		PeriodEnd:              end,
		OpeningBalanceCents:    calc.OpeningBalanceCents,
		ClosingBalanceCents:    calc.ClosingBalanceCents,
		CalculatedBalanceCents: calc.CalculatedBalanceCents,
		DiscrepancyCents:       calc.DiscrepancyCents,
		Status:                 calc.Status,
		MatchedCount:           matchedCount,
		ReconciledBy:           reconciledBy,
	}
	if calc.IsBalanced() {
		reconciledAt := at
		rec.ReconciledAt = &reconciledAt
	}
	return rec, nil
}

// Overlaps reports whether the record covers any day of the given range
func (r *Reconciliation) Overlaps(start, end time.Time) bool {
	return PeriodsOverlap(r.PeriodStart, r.PeriodEnd, start, end)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
