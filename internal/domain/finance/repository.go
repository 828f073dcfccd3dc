package finance

import (
	"context"
	"time"

	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	ParentID *uuid.UUID      // Filter by parent
	Statuses []InvoiceStatus // Filter by any of the statuses
	DueTo    *time.Time      // Filter by due date on or before
	Unpaid   bool            // Only invoices with amount_paid < total
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByIDForTenant finds an invoice by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByIDsForTenant finds the invoices with the given IDs; missing IDs are simply absent
	FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Invoice, error)

	// FindByInvoiceNumber finds an invoice by number for a tenant
	FindByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*Invoice, error)

	// FindAllForTenant finds invoices for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// FindOpenForTenant finds issued, unpaid invoices that can receive payments
	FindOpenForTenant(ctx context.Context, tenantID uuid.UUID) ([]Invoice, error)

	// FindTenantsWithOverdue lists tenants that have unpaid invoices due before asOf
	FindTenantsWithOverdue(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)

	// Save creates or updates an invoice
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, invoice *Invoice) error
}

// TransactionFilter defines filtering options for bank transaction queries
type TransactionFilter struct {
	shared.Filter
	BankAccount  string
	IDs          []uuid.UUID
	IsReconciled *bool
	FromDate     *time.Time
	ToDate       *time.Time
}

// TransactionRepository defines the interface for bank transaction persistence
type TransactionRepository interface {
	// FindByIDForTenant finds a non-deleted transaction by ID for a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Transaction, error)

	// FindByIDForUpdate finds a transaction and locks its row until the enclosing unit of work ends
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Transaction, error)

	// FindUnallocatedCredits finds unreconciled credits with an unallocated remainder.
	// An empty ids slice means all such transactions of the tenant.
	FindUnallocatedCredits(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Transaction, error)

	// FindForPeriod finds non-deleted transactions of a bank account dated within [start, end]
	FindForPeriod(ctx context.Context, tenantID uuid.UUID, bankAccount string, start, end time.Time) ([]Transaction, error)

	// FindAllForTenant finds transactions for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter TransactionFilter) ([]Transaction, error)

	// Save creates or updates a transaction
	Save(ctx context.Context, tx *Transaction) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, tx *Transaction) error

	// MarkReconciled seals the given transactions. It fails with a conflict unless every
	// one of them was still unreconciled.
	MarkReconciled(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, at time.Time) error
}

// PaymentRepository defines the interface for append-only payment persistence
type PaymentRepository interface {
	// CreateBatch inserts payments
	CreateBatch(ctx context.Context, payments []*Payment) error

	// FindByTransaction finds payments allocated from a transaction
	FindByTransaction(ctx context.Context, tenantID, transactionID uuid.UUID) ([]Payment, error)

	// FindByInvoice finds payments allocated to an invoice
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Payment, error)

	// SumByTransaction returns the total allocated from a transaction
	SumByTransaction(ctx context.Context, tenantID, transactionID uuid.UUID) (int64, error)
}

// ReconciliationFilter defines filtering options for reconciliation queries
type ReconciliationFilter struct {
	shared.Filter
	BankAccount string
	Status      *ReconciliationStatus
}

// ReconciliationRepository defines the interface for reconciliation persistence
type ReconciliationRepository interface {
	// Create inserts a reconciliation. Overlapping periods for the same account are a conflict.
	Create(ctx context.Context, rec *Reconciliation) error

	// FindByIDForTenant finds a reconciliation by ID for a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Reconciliation, error)

	// FindOverlapping finds reconciliations of the account sharing any day with [start, end]
	FindOverlapping(ctx context.Context, tenantID uuid.UUID, bankAccount string, start, end time.Time) ([]Reconciliation, error)

	// FindAllForTenant finds reconciliations for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ReconciliationFilter) ([]Reconciliation, error)

	// CountForTenant counts reconciliations for a tenant with filtering
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter ReconciliationFilter) (int64, error)
}

// ReminderRepository defines the interface for reminder persistence
type ReminderRepository interface {
	// Create inserts a reminder
	Create(ctx context.Context, reminder *Reminder) error

	// FindLastSentAt returns when the latest SENT reminder for the invoice went out, or nil
	FindLastSentAt(ctx context.Context, tenantID, invoiceID uuid.UUID) (*time.Time, error)

	// FindByInvoice lists reminders for an invoice, newest first
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Reminder, error)
}
