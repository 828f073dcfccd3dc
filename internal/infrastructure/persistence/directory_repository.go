package persistence

import (
	"context"
	"errors"

	"github.com/crechebooks/backend/internal/domain/partner"
	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/crechebooks/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormParentRepository implements ParentRepository using GORM
type GormParentRepository struct {
	db *gorm.DB
}

// NewGormParentRepository creates a new GormParentRepository
func NewGormParentRepository(db *gorm.DB) *GormParentRepository {
	return &GormParentRepository{db: db}
}

// FindByIDForTenant finds a parent by ID within a tenant
func (r *GormParentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*partner.Parent, error) {
	var model models.ParentModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("parent", id)
		}
		return nil, translateError(err, "find parent")
	}
	return model.ToDomain(), nil
}

// FindByIDsForTenant finds the parents with the given IDs within a tenant
func (r *GormParentRepository) FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]partner.Parent, error) {
	if len(ids) == 0 {
		return []partner.Parent{}, nil
	}
	var parentModels []models.ParentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&parentModels).Error; err != nil {
		return nil, translateError(err, "find parents")
	}
	parents := make([]partner.Parent, len(parentModels))
	for i, model := range parentModels {
		parents[i] = *model.ToDomain()
	}
	return parents, nil
}

// Save creates or updates a parent
func (r *GormParentRepository) Save(ctx context.Context, parent *partner.Parent) error {
	model := models.ParentModelFromDomain(parent)
	return translateError(r.db.WithContext(ctx).Save(model).Error, "save parent")
}

// GormChildRepository implements ChildRepository using GORM
type GormChildRepository struct {
	db *gorm.DB
}

// NewGormChildRepository creates a new GormChildRepository
func NewGormChildRepository(db *gorm.DB) *GormChildRepository {
	return &GormChildRepository{db: db}
}

// FindByIDForTenant finds a child by ID within a tenant
func (r *GormChildRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*partner.Child, error) {
	var model models.ChildModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("child", id)
		}
		return nil, translateError(err, "find child")
	}
	return model.ToDomain(), nil
}

// Save creates or updates a child
func (r *GormChildRepository) Save(ctx context.Context, child *partner.Child) error {
	model := models.ChildModelFromDomain(child)
	return translateError(r.db.WithContext(ctx).Save(model).Error, "save child")
}

// GormCrecheProfileRepository implements CrecheProfileRepository using GORM
type GormCrecheProfileRepository struct {
	db *gorm.DB
}

// NewGormCrecheProfileRepository creates a new GormCrecheProfileRepository
func NewGormCrecheProfileRepository(db *gorm.DB) *GormCrecheProfileRepository {
	return &GormCrecheProfileRepository{db: db}
}

// FindByTenant finds the profile of a tenant
func (r *GormCrecheProfileRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*partner.CrecheProfile, error) {
	var model models.CrecheProfileModel
	if err := r.db.WithContext(ctx).
		First(&model, "tenant_id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("creche profile", tenantID)
		}
		return nil, translateError(err, "find creche profile")
	}
	return model.ToDomain(), nil
}

// Save creates or updates a profile
func (r *GormCrecheProfileRepository) Save(ctx context.Context, profile *partner.CrecheProfile) error {
	model := models.CrecheProfileModelFromDomain(profile)
	return translateError(r.db.WithContext(ctx).Save(model).Error, "save creche profile")
}

var (
	_ partner.ParentRepository        = (*GormParentRepository)(nil)
	_ partner.ChildRepository         = (*GormChildRepository)(nil)
	_ partner.CrecheProfileRepository = (*GormCrecheProfileRepository)(nil)
)
