package partner

import (
	"strings"

	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Child is an enrolled child whose fees are invoiced to a parent
type Child struct {
	shared.TenantAggregateRoot
	ParentID  uuid.UUID `json:"parent_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

// NewChild creates a child linked to a parent
func NewChild(tenantID, parentID uuid.UUID, firstName, lastName string) (*Child, error) {
	if parentID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_PARENT", "Parent ID cannot be empty")
	}
	if strings.TrimSpace(firstName) == "" {
		return nil, shared.NewValidationError("INVALID_NAME", "Child first name is required")
	}
	return &Child{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ParentID:            parentID,
		FirstName:           strings.TrimSpace(firstName),
		LastName:            strings.TrimSpace(lastName),
	}, nil
}

// FullName returns "First Last"
func (c *Child) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
