package partner

import (
	"testing"

	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParent(t *testing.T) {
	tenantID := uuid.New()

	t.Run("creates parent with email preference", func(t *testing.T) {
		p, err := NewParent(tenantID, " Thandi ", "Mokoena")
		require.NoError(t, err)
		assert.Equal(t, "Thandi", p.FirstName)
		assert.Equal(t, ContactEmail, p.PreferredContact)
		assert.Equal(t, "Thandi Mokoena", p.FullName())
		assert.Equal(t, tenantID, p.TenantID)
	})

	t.Run("requires both names", func(t *testing.T) {
		_, err := NewParent(tenantID, "Thandi", "")
		assert.True(t, shared.IsValidation(err))
	})
}

func TestParent_SetContact(t *testing.T) {
	p, err := NewParent(uuid.New(), "Thandi", "Mokoena")
	require.NoError(t, err)

	tests := []struct {
		name       string
		email      string
		whatsapp   string
		preference ContactPreference
		wantErr    bool
	}{
		{"both channels", "thandi@example.co.za", "+27 82 555 0101", ContactBoth, false},
		{"email only", "thandi@example.co.za", "", ContactEmail, false},
		{"bad email", "not-an-email", "", ContactEmail, true},
		{"bad phone", "", "call me", ContactWhatsApp, true},
		{"unknown preference", "", "", ContactPreference("SMS"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.SetContact(tt.email, tt.whatsapp, tt.preference)
			if tt.wantErr {
				assert.True(t, shared.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.preference, p.PreferredContact)
		})
	}
}
