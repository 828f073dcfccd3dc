package partner

import (
	"regexp"
	"strings"
	"time"

	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ContactPreference is how a parent prefers to be contacted
type ContactPreference string

const (
	ContactEmail    ContactPreference = "EMAIL"
	ContactWhatsApp ContactPreference = "WHATSAPP"
	ContactBoth     ContactPreference = "BOTH"
)

// IsValid checks if the preference is known
func (p ContactPreference) IsValid() bool {
	switch p {
	case ContactEmail, ContactWhatsApp, ContactBoth:
		return true
	}
	return false
}

// Parent is the account holder invoices are billed to
type Parent struct {
	shared.TenantAggregateRoot
	FirstName        string            `json:"first_name"`
	LastName         string            `json:"last_name"`
	PreferredContact ContactPreference `json:"preferred_contact"`
	Email            string            `json:"email"`
	WhatsApp         string            `json:"whatsapp"`
}

// NewParent creates a parent with email as the default contact channel
func NewParent(tenantID uuid.UUID, firstName, lastName string) (*Parent, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, shared.NewValidationError("INVALID_NAME", "Parent first and last name are required")
	}
	if len(firstName) > 100 || len(lastName) > 100 {
		return nil, shared.NewValidationError("INVALID_NAME", "Parent name cannot exceed 100 characters")
	}
	return &Parent{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		FirstName:           firstName,
		LastName:            lastName,
		PreferredContact:    ContactEmail,
	}, nil
}

// FullName returns "First Last"
func (p *Parent) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// SetContact sets the parent's contact details and preference
func (p *Parent) SetContact(email, whatsapp string, preference ContactPreference) error {
	if !preference.IsValid() {
		return shared.NewValidationError("INVALID_CONTACT_PREFERENCE", "Contact preference must be EMAIL, WHATSAPP or BOTH")
	}
	if email != "" {
		if err := validateEmail(email); err != nil {
			return err
		}
	}
	if whatsapp != "" {
		if err := validatePhone(whatsapp); err != nil {
			return err
		}
	}

	p.Email = email
	p.WhatsApp = whatsapp
	p.PreferredContact = preference
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	return nil
}

var (
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-\(\)]+$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

func validatePhone(phone string) error {
	if len(phone) > 50 {
		return shared.NewValidationError("INVALID_PHONE", "Phone number cannot exceed 50 characters")
	}
	if !phonePattern.MatchString(phone) {
		return shared.NewValidationError("INVALID_PHONE", "Invalid phone number format")
	}
	return nil
}

func validateEmail(email string) error {
	if len(email) > 200 {
		return shared.NewValidationError("INVALID_EMAIL", "Email cannot exceed 200 characters")
	}
	if !emailPattern.MatchString(email) {
		return shared.NewValidationError("INVALID_EMAIL", "Invalid email format")
	}
	return nil
}
