package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/crechebooks/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// TransactionStatus represents the processing state of a bank transaction
type TransactionStatus string

const (
	TransactionStatusPending     TransactionStatus = "PENDING"
	TransactionStatusCategorized TransactionStatus = "CATEGORIZED"
	TransactionStatusMatched     TransactionStatus = "MATCHED"
	TransactionStatusReconciled  TransactionStatus = "RECONCILED"
)

// IsValid checks if the status is a valid TransactionStatus
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCategorized, TransactionStatusMatched, TransactionStatusReconciled:
		return true
	}
	return false
}

// String returns the string representation of TransactionStatus
func (s TransactionStatus) String() string {
	return string(s)
}

// Transaction is a bank statement line for one of the creche's accounts.
// Once reconciled, amount, date and direction are sealed.
type Transaction struct {
	shared.TenantAggregateRoot
	BankAccount    string            `json:"bank_account"`
	Date           time.Time         `json:"date"`
	Description    string            `json:"description"`
	PayeeName      string            `json:"payee_name"`
	Reference      string            `json:"reference"`
	AmountCents    int64             `json:"amount_cents"`
	IsCredit       bool              `json:"is_credit"`
	AllocatedCents int64             `json:"allocated_cents"`
	Status         TransactionStatus `json:"status"`
	IsReconciled   bool              `json:"is_reconciled"`
	ReconciledAt   *time.Time        `json:"reconciled_at"`
	DeletedAt      *time.Time        `json:"deleted_at,omitempty"`
}

// NewTransaction creates an imported bank transaction.
// amount is a positive magnitude; direction is carried by isCredit.
func NewTransaction(
	tenantID uuid.UUID,
	bankAccount string,
	date time.Time,
	description, payeeName, reference string,
	amount valueobject.Money,
	isCredit bool,
) (*Transaction, error) {
	if strings.TrimSpace(bankAccount) == "" {
		return nil, shared.NewValidationError("INVALID_BANK_ACCOUNT", "Bank account cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Transaction amount must be a positive magnitude")
	}
	if date.IsZero() {
		return nil, shared.NewValidationError("INVALID_DATE", "Transaction date is required")
	}

	return &Transaction{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		BankAccount:         bankAccount,
		Date:                date,
		Description:         description,
		PayeeName:           payeeName,
		Reference:           reference,
		AmountCents:         amount.Cents(),
		IsCredit:            isCredit,
		Status:              TransactionStatusPending,
	}, nil
}

// Amount returns the transaction magnitude as Money
func (t *Transaction) Amount() valueobject.Money {
	return valueobject.NewMoneyFromCents(t.AmountCents)
}

// SignedCents returns the amount with credits positive and debits negative
func (t *Transaction) SignedCents() int64 {
	if t.IsCredit {
		return t.AmountCents
	}
	return -t.AmountCents
}

// RemainingCents returns the part of the amount not yet allocated to invoices
func (t *Transaction) RemainingCents() int64 {
	if t.AllocatedCents >= t.AmountCents {
		return 0
	}
	return t.AmountCents - t.AllocatedCents
}

// IsFullyAllocated returns true when the whole amount has been applied to invoices
func (t *Transaction) IsFullyAllocated() bool {
	return t.AllocatedCents >= t.AmountCents
}

// IsDeleted returns true if the transaction was soft deleted
func (t *Transaction) IsDeleted() bool {
	return t.DeletedAt != nil
}

// CheckAllocatable returns a conflict error when the transaction cannot receive allocations
func (t *Transaction) CheckAllocatable() error {
	if t.IsDeleted() {
		return shared.NewNotFoundError("transaction", t.ID)
	}
	if !t.IsCredit {
		return shared.NewConflictError("NOT_A_CREDIT", "Only credit transactions can be allocated to invoices")
	}
	if t.IsReconciled {
		return shared.NewConflictError("TRANSACTION_RECONCILED", fmt.Sprintf("Transaction %s is reconciled and cannot receive allocations", t.ID))
	}
	if t.IsFullyAllocated() {
		return shared.NewConflictError("FULLY_ALLOCATED", fmt.Sprintf("Transaction %s is already fully allocated", t.ID))
	}
	return nil
}

// RecordAllocation adds allocated cents, refusing anything beyond the remainder
func (t *Transaction) RecordAllocation(amount valueobject.Money, at time.Time) error {
	if err := t.CheckAllocatable(); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("INVALID_AMOUNT", "Allocation amount must be positive")
	}
	if amount.Cents() > t.RemainingCents() {
		return shared.NewConflictError("OVER_ALLOCATION", fmt.Sprintf("Allocation %s exceeds unallocated remainder %s",
			amount, valueobject.NewMoneyFromCents(t.RemainingCents())))
	}

	t.AllocatedCents += amount.Cents()
	if t.IsFullyAllocated() {
		t.Status = TransactionStatusMatched
	}
	t.UpdatedAt = at
	t.IncrementVersion()
	return nil
}

// Seal marks the transaction as reconciled; it becomes immutable afterwards
func (t *Transaction) Seal(at time.Time) error {
	if t.IsReconciled {
		return shared.NewConflictError("ALREADY_RECONCILED", fmt.Sprintf("Transaction %s is already reconciled", t.ID))
	}
	reconciledAt := at
	t.IsReconciled = true
	t.ReconciledAt = &reconciledAt
	t.Status = TransactionStatusReconciled
	t.UpdatedAt = at
	t.IncrementVersion()
	return nil
}

// Correct changes the sealed fields of an unreconciled transaction
func (t *Transaction) Correct(date time.Time, amount valueobject.Money, isCredit bool) error {
	if t.IsReconciled {
		return shared.ErrImmutable
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("INVALID_AMOUNT", "Transaction amount must be a positive magnitude")
	}
	if amount.Cents() < t.AllocatedCents {
		return shared.NewConflictError("BELOW_ALLOCATED", "Corrected amount cannot be less than the amount already allocated")
	}
	t.Date = date
	t.AmountCents = amount.Cents()
	t.IsCredit = isCredit
	t.UpdatedAt = time.Now()
	t.IncrementVersion()
	return nil
}

// Delete soft deletes the transaction. Reconciled transactions are kept forever.
func (t *Transaction) Delete(at time.Time) error {
	if t.IsReconciled {
		return shared.ErrImmutable
	}
	deletedAt := at
	t.DeletedAt = &deletedAt
	t.UpdatedAt = at
	t.IncrementVersion()
	return nil
}
