package finance

import (
	"context"

	"github.com/crechebooks/backend/internal/domain/finance"
)

// TransactionScope provides transactional access to bookkeeping repositories.
// All repository operations inside Execute share one database transaction and are
// committed or rolled back together.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories bound to the current transaction.
//
//   - TransactionRepo: bank transactions, including the row lock taken before allocating.
//   - InvoiceRepo: invoice balances, saved with a version check.
//   - PaymentRepo: append-only allocation records.
//   - ReconciliationRepo: period records; overlap is rejected by the store.
type TransactionalRepositories interface {
	TransactionRepo() finance.TransactionRepository
	InvoiceRepo() finance.InvoiceRepository
	PaymentRepo() finance.PaymentRepository
	ReconciliationRepo() finance.ReconciliationRepository
}

// NoOpTransactionScope runs the function against plain repositories without a transaction.
// It is used by tests.
type NoOpTransactionScope struct {
	transactionRepo    finance.TransactionRepository
	invoiceRepo        finance.InvoiceRepository
	paymentRepo        finance.PaymentRepository
	reconciliationRepo finance.ReconciliationRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	transactionRepo finance.TransactionRepository,
	invoiceRepo finance.InvoiceRepository,
	paymentRepo finance.PaymentRepository,
	reconciliationRepo finance.ReconciliationRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		transactionRepo:    transactionRepo,
		invoiceRepo:        invoiceRepo,
		paymentRepo:        paymentRepo,
		reconciliationRepo: reconciliationRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// TransactionRepo returns the bank transaction repository.
func (s *NoOpTransactionScope) TransactionRepo() finance.TransactionRepository {
	return s.transactionRepo
}

// InvoiceRepo returns the invoice repository.
func (s *NoOpTransactionScope) InvoiceRepo() finance.InvoiceRepository {
	return s.invoiceRepo
}

// PaymentRepo returns the payment repository.
func (s *NoOpTransactionScope) PaymentRepo() finance.PaymentRepository {
	return s.paymentRepo
}

// ReconciliationRepo returns the reconciliation repository.
func (s *NoOpTransactionScope) ReconciliationRepo() finance.ReconciliationRepository {
	return s.reconciliationRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
