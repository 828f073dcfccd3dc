package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/crechebooks/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTransactionRepository implements TransactionRepository using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// live starts a query over one tenant's non-deleted transactions
func (r *GormTransactionRepository) live(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Where("tenant_id = ? AND deleted_at IS NULL", tenantID)
}

// FindByIDForTenant finds a non-deleted transaction by ID for a tenant
func (r *GormTransactionRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*finance.Transaction, error) {
	var model models.BankTransactionModel
	if err := r.live(ctx, tenantID).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("transaction", id)
		}
		return nil, translateError(err, "find transaction")
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a transaction with SELECT ... FOR UPDATE.
// The row stays locked until the enclosing database transaction ends.
func (r *GormTransactionRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.Transaction, error) {
	var model models.BankTransactionModel
	if err := r.live(ctx, tenantID).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("transaction", id)
		}
		return nil, translateError(err, "lock transaction")
	}
	return model.ToDomain(), nil
}

// FindUnallocatedCredits finds unreconciled credits with an unallocated remainder.
// An empty ids slice means all such transactions of the tenant.
func (r *GormTransactionRepository) FindUnallocatedCredits(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]finance.Transaction, error) {
	query := r.live(ctx, tenantID).
		Where("is_credit = ? AND is_reconciled = ? AND allocated_cents < amount_cents", true, false)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}

	var txModels []models.BankTransactionModel
	if err := query.Order("date ASC").Order("id ASC").Find(&txModels).Error; err != nil {
		return nil, translateError(err, "list unallocated credits")
	}
	return transactionsToDomain(txModels), nil
}

// FindForPeriod finds non-deleted transactions of a bank account dated within [start, end]
func (r *GormTransactionRepository) FindForPeriod(ctx context.Context, tenantID uuid.UUID, bankAccount string, start, end time.Time) ([]finance.Transaction, error) {
	var txModels []models.BankTransactionModel
	if err := r.live(ctx, tenantID).
		Where("bank_account = ? AND date >= ? AND date <= ?", bankAccount, start, end).
		Order("date ASC").Order("id ASC").
		Find(&txModels).Error; err != nil {
		return nil, translateError(err, "list transactions for period")
	}
	return transactionsToDomain(txModels), nil
}

// FindAllForTenant finds transactions for a tenant with filtering
func (r *GormTransactionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter finance.TransactionFilter) ([]finance.Transaction, error) {
	query := r.live(ctx, tenantID)

	if filter.BankAccount != "" {
		query = query.Where("bank_account = ?", filter.BankAccount)
	}
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.IsReconciled != nil {
		query = query.Where("is_reconciled = ?", *filter.IsReconciled)
	}
	if filter.FromDate != nil {
		query = query.Where("date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("date <= ?", *filter.ToDate)
	}

	sortField := ValidateSortField(filter.OrderBy, TransactionSortFields, "date")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(sortField + " " + sortOrder).Order("id ASC")

	if filter.PageSize > 0 {
		query = query.Limit(filter.Limit()).Offset(filter.Offset())
	}

	var txModels []models.BankTransactionModel
	if err := query.Find(&txModels).Error; err != nil {
		return nil, translateError(err, "list transactions")
	}
	return transactionsToDomain(txModels), nil
}

// Save creates or updates a transaction
func (r *GormTransactionRepository) Save(ctx context.Context, tx *finance.Transaction) error {
	model := models.BankTransactionModelFromDomain(tx)
	return translateError(r.db.WithContext(ctx).Save(model).Error, "save transaction")
}

// SaveWithLock saves with optimistic locking. The transaction carries the version its
// mutation produced, so the stored row must still be exactly one version behind.
// Sealed rows are never rewritten.
func (r *GormTransactionRepository) SaveWithLock(ctx context.Context, tx *finance.Transaction) error {
	expected := tx.Version - 1
	model := models.BankTransactionModelFromDomain(tx)
	result := r.db.WithContext(ctx).
		Model(&models.BankTransactionModel{}).
		Where("id = ? AND tenant_id = ? AND version = ? AND is_reconciled = ?", tx.ID, tx.TenantID, expected, false).
		Select("*").Omit("id", "tenant_id", "created_at").
		Updates(model)
	if result.Error != nil {
		return translateError(result.Error, "save transaction")
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("CONCURRENT_MODIFICATION", "The transaction has been modified by another process")
	}
	return nil
}

// MarkReconciled seals the given transactions in one statement. It fails with a
// conflict unless every one of them was still unreconciled.
func (r *GormTransactionRepository) MarkReconciled(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	result := r.live(ctx, tenantID).
		Model(&models.BankTransactionModel{}).
		Where("id IN ? AND is_reconciled = ?", ids, false).
		Updates(map[string]any{
			"is_reconciled": true,
			"reconciled_at": at,
			"status":        finance.TransactionStatusReconciled,
			"updated_at":    at,
			"version":       gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return translateError(result.Error, "mark transactions reconciled")
	}
	if result.RowsAffected != int64(len(ids)) {
		return shared.NewConflictError("ALREADY_RECONCILED", fmt.Sprintf(
			"Only %d of %d transactions could be sealed; another reconciliation got there first",
			result.RowsAffected, len(ids)))
	}
	return nil
}

func transactionsToDomain(txModels []models.BankTransactionModel) []finance.Transaction {
	transactions := make([]finance.Transaction, len(txModels))
	for i, model := range txModels {
		transactions[i] = *model.ToDomain()
	}
	return transactions
}

var _ finance.TransactionRepository = (*GormTransactionRepository)(nil)
