package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/crechebooks/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReconciliationRepository implements ReconciliationRepository using GORM
type GormReconciliationRepository struct {
	db *gorm.DB
}

// NewGormReconciliationRepository creates a new GormReconciliationRepository
func NewGormReconciliationRepository(db *gorm.DB) *GormReconciliationRepository {
	return &GormReconciliationRepository{db: db}
}

// Create inserts a reconciliation. On postgres an overlapping period is rejected by
// the reconciliations_no_overlap exclusion constraint and surfaces as a conflict.
func (r *GormReconciliationRepository) Create(ctx context.Context, rec *finance.Reconciliation) error {
	model := models.ReconciliationModelFromDomain(rec)
	return translateError(r.db.WithContext(ctx).Create(model).Error, "create reconciliation")
}

// FindByIDForTenant finds a reconciliation by ID for a tenant
func (r *GormReconciliationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*finance.Reconciliation, error) {
	var model models.ReconciliationModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("reconciliation", id)
		}
		return nil, translateError(err, "find reconciliation")
	}
	return model.ToDomain(), nil
}

// FindOverlapping finds reconciliations of the account sharing any day with [start, end]
func (r *GormReconciliationRepository) FindOverlapping(ctx context.Context, tenantID uuid.UUID, bankAccount string, start, end time.Time) ([]finance.Reconciliation, error) {
	var recModels []models.ReconciliationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND bank_account = ? AND period_start <= ? AND period_end >= ?", tenantID, bankAccount, end, start).
		Order("period_start ASC").
		Find(&recModels).Error; err != nil {
		return nil, translateError(err, "find overlapping reconciliations")
	}
	return reconciliationsToDomain(recModels), nil
}

// FindAllForTenant finds reconciliations for a tenant with filtering
func (r *GormReconciliationRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter finance.ReconciliationFilter) ([]finance.Reconciliation, error) {
	query := r.filtered(ctx, tenantID, filter)

	sortField := ValidateSortField(filter.OrderBy, ReconciliationSortFields, "period_start")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(sortField + " " + sortOrder).Order("id ASC")

	if filter.PageSize > 0 {
		query = query.Limit(filter.Limit()).Offset(filter.Offset())
	}

	var recModels []models.ReconciliationModel
	if err := query.Find(&recModels).Error; err != nil {
		return nil, translateError(err, "list reconciliations")
	}
	return reconciliationsToDomain(recModels), nil
}

// CountForTenant counts reconciliations for a tenant with filtering
func (r *GormReconciliationRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter finance.ReconciliationFilter) (int64, error) {
	var count int64
	if err := r.filtered(ctx, tenantID, filter).
		Model(&models.ReconciliationModel{}).
		Count(&count).Error; err != nil {
		return 0, translateError(err, "count reconciliations")
	}
	return count, nil
}

func (r *GormReconciliationRepository) filtered(ctx context.Context, tenantID uuid.UUID, filter finance.ReconciliationFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if filter.BankAccount != "" {
		query = query.Where("bank_account = ?", filter.BankAccount)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

func reconciliationsToDomain(recModels []models.ReconciliationModel) []finance.Reconciliation {
	recs := make([]finance.Reconciliation, len(recModels))
	for i, model := range recModels {
		recs[i] = *model.ToDomain()
	}
	return recs
}

var _ finance.ReconciliationRepository = (*GormReconciliationRepository)(nil)
