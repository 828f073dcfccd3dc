package finance

import (
	"testing"
	"time"

	"github.com/crechebooks/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestInvoice(t *testing.T, tenantID uuid.UUID, number string, totalCents int64, due time.Time) *Invoice {
	t.Helper()
	inv, err := NewInvoice(tenantID, number, uuid.New(), uuid.New(),
		due.AddDate(0, -1, 0), due.AddDate(0, 0, -1), due, valueobject.NewMoneyFromCents(totalCents))
	require.NoError(t, err)
	require.NoError(t, inv.Issue())
	return inv
}

func newTestCredit(t *testing.T, tenantID uuid.UUID, cents int64, on time.Time, payee, reference string) *Transaction {
	t.Helper()
	tx, err := NewTransaction(tenantID, "FNB-001", on, "", payee, reference, valueobject.NewMoneyFromCents(cents), true)
	require.NoError(t, err)
	return tx
}
