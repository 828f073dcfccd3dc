package notification

import (
	"testing"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func reminderContent(level finance.EscalationLevel, days int) finance.ReminderContent {
	return finance.ReminderContent{
		Level:             level,
		ParentName:        "Thandi Mokoena",
		ChildName:         "Lerato Mokoena",
		InvoiceNumber:     "INV-2024-031",
		Amount:            valueobject.NewMoneyFromCents(345000),
		DaysOverdue:       days,
		DueDate:           day(2024, 3, 7),
		CrecheName:        "Little Stars Creche",
		CrechePhone:       "011 555 0101",
		BankName:          "FNB",
		BankAccountNumber: "62812345678",
		BankBranchCode:    "250655",
	}
}

func TestTemplateRenderer_Levels(t *testing.T) {
	r, err := NewTemplateRenderer(WithLocale(language.English))
	require.NoError(t, err)

	tests := []struct {
		level       finance.EscalationLevel
		days        int
		subject     string
		bodyPhrases []string
	}{
		{finance.EscalationFriendly, 3, "Friendly reminder: invoice INV-2024-031 from Little Stars Creche",
			[]string{"friendly reminder", "due on 7 March 2024"}},
		{finance.EscalationFirm, 10, "Payment overdue: invoice INV-2024-031 (10 days)",
			[]string{"now 10 days overdue", "within 7 days"}},
		{finance.EscalationFinal, 21, "FINAL NOTICE: invoice INV-2024-031 is 21 days overdue",
			[]string{"remains unpaid 21 days", "refer the account for collection"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			subject, body, err := r.Render(reminderContent(tt.level, tt.days))
			require.NoError(t, err)
			assert.Equal(t, tt.subject, subject)
			assert.Contains(t, body, "Dear Thandi Mokoena,")
			assert.Contains(t, body, "for Lerato Mokoena")
			assert.Contains(t, body, "R 3,450.00")
			assert.Contains(t, body, "Account: 62812345678")
			assert.Contains(t, body, "Branch code: 250655")
			assert.Contains(t, body, "Reference: INV-2024-031")
			for _, phrase := range tt.bodyPhrases {
				assert.Contains(t, body, phrase)
			}
		})
	}
}

func TestTemplateRenderer_MissingOptionalDetails(t *testing.T) {
	r, err := NewTemplateRenderer()
	require.NoError(t, err)

	content := finance.ReminderContent{
		Level:         finance.EscalationFriendly,
		ParentName:    "Sipho Dlamini",
		InvoiceNumber: "INV-7",
		Amount:        valueobject.NewMoneyFromCents(150000),
		DaysOverdue:   1,
		DueDate:       day(2024, 3, 20),
	}
	subject, body, err := r.Render(content)
	require.NoError(t, err)

	assert.Equal(t, "Friendly reminder: invoice INV-7 from your creche", subject)
	assert.NotContains(t, body, "Banking details")
	assert.NotContains(t, body, " for ")
	assert.Contains(t, body, content.Amount.Format(language.MustParse("en-ZA")))
}

func TestTemplateRenderer_UnknownLevel(t *testing.T) {
	r, err := NewTemplateRenderer()
	require.NoError(t, err)

	_, _, err = r.Render(finance.ReminderContent{Level: "GENTLE"})
	assert.Error(t, err)
}
