package partner

import (
	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CrecheProfile holds the tenant's own contact and banking details shown on reminders
type CrecheProfile struct {
	shared.TenantAggregateRoot
	Name              string `json:"name"`
	Phone             string `json:"phone"`
	Email             string `json:"email"`
	BankName          string `json:"bank_name"`
	BankAccountNumber string `json:"bank_account_number"`
	BankBranchCode    string `json:"bank_branch_code"`
}

// NewCrecheProfile creates a profile for a tenant
func NewCrecheProfile(tenantID uuid.UUID, name string) (*CrecheProfile, error) {
	if name == "" {
		return nil, shared.NewValidationError("INVALID_NAME", "Creche name is required")
	}
	return &CrecheProfile{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
	}, nil
}
