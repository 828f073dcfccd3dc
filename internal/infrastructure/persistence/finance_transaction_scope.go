package persistence

import (
	"context"

	appfinance "github.com/crechebooks/backend/internal/application/finance"
	"github.com/crechebooks/backend/internal/domain/finance"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Allocation and reconciliation run all their reads and writes inside one scope.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appfinance.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// TransactionRepo returns the bank transaction repository scoped to the current transaction.
func (r *gormTransactionalRepositories) TransactionRepo() finance.TransactionRepository {
	return NewGormTransactionRepository(r.tx)
}

// InvoiceRepo returns the invoice repository scoped to the current transaction.
func (r *gormTransactionalRepositories) InvoiceRepo() finance.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

// PaymentRepo returns the payment repository scoped to the current transaction.
func (r *gormTransactionalRepositories) PaymentRepo() finance.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

// ReconciliationRepo returns the reconciliation repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ReconciliationRepo() finance.ReconciliationRepository {
	return NewGormReconciliationRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appfinance.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appfinance.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
