package partner

import (
	"context"

	"github.com/google/uuid"
)

// ParentRepository defines read access to the parent directory
type ParentRepository interface {
	// FindByIDForTenant finds a parent by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Parent, error)

	// FindByIDsForTenant finds the parents with the given IDs within a tenant
	FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Parent, error)

	// Save creates or updates a parent
	Save(ctx context.Context, parent *Parent) error
}

// ChildRepository defines read access to enrolled children
type ChildRepository interface {
	// FindByIDForTenant finds a child by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Child, error)

	// Save creates or updates a child
	Save(ctx context.Context, child *Child) error
}

// CrecheProfileRepository defines access to the tenant's creche profile
type CrecheProfileRepository interface {
	// FindByTenant finds the profile of a tenant
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*CrecheProfile, error)

	// Save creates or updates a profile
	Save(ctx context.Context, profile *CrecheProfile) error
}
