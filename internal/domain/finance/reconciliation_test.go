package finance

import (
	"testing"
	"time"

	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/crechebooks/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateBalance(t *testing.T) {
	tenantID := uuid.New()
	credit := newTestCredit(t, tenantID, 1000000, date(2025, 1, 10), "", "")
	debit, err := NewTransaction(tenantID, "FNB-001", date(2025, 1, 12), "rent", "", "", valueobject.NewMoneyFromCents(500000), false)
	require.NoError(t, err)

	t.Run("balanced period", func(t *testing.T) {
		calc := CalculateBalance(5000000, 5500000, []Transaction{*credit, *debit})
		assert.Equal(t, int64(5500000), calc.CalculatedBalanceCents)
		assert.Equal(t, int64(0), calc.DiscrepancyCents)
		assert.Equal(t, ReconciliationStatusReconciled, calc.Status)
		assert.Equal(t, 2, calc.TransactionCount)
	})

	t.Run("empty period equals opening balance", func(t *testing.T) {
		calc := CalculateBalance(5000000, 5000000, nil)
		assert.Equal(t, int64(5000000), calc.CalculatedBalanceCents)
		assert.True(t, calc.IsBalanced())
	})

	t.Run("one cent tolerance", func(t *testing.T) {
		assert.True(t, CalculateBalance(100, 101, nil).IsBalanced())
		assert.True(t, CalculateBalance(100, 99, nil).IsBalanced())
		calc := CalculateBalance(100, 102, nil)
		assert.Equal(t, ReconciliationStatusDiscrepancy, calc.Status)
		assert.Equal(t, int64(2), calc.DiscrepancyCents)
	})

	t.Run("deleted transactions are ignored", func(t *testing.T) {
		gone := newTestCredit(t, tenantID, 700, date(2025, 1, 11), "", "")
		require.NoError(t, gone.Delete(time.Now()))
		calc := CalculateBalance(0, 1000000, []Transaction{*credit, *gone})
		assert.True(t, calc.IsBalanced())
		assert.Equal(t, 1, calc.TransactionCount)
	})

	t.Run("debit only period", func(t *testing.T) {
		calc := CalculateBalance(600000, 100000, []Transaction{*debit})
		assert.True(t, calc.IsBalanced())
	})
}

func TestValidatePeriod(t *testing.T) {
	assert.NoError(t, ValidatePeriod("FNB-001", date(2025, 1, 1), date(2025, 1, 1)))
	assert.True(t, shared.IsValidation(ValidatePeriod("FNB-001", date(2025, 1, 31), date(2025, 1, 1))))
	assert.True(t, shared.IsValidation(ValidatePeriod(" ", date(2025, 1, 1), date(2025, 1, 31))))
}

func TestPeriodsOverlap(t *testing.T) {
	jan := [2]time.Time{date(2025, 1, 1), date(2025, 1, 31)}

	assert.True(t, PeriodsOverlap(jan[0], jan[1], date(2025, 1, 31), date(2025, 2, 28)))
	assert.True(t, PeriodsOverlap(jan[0], jan[1], date(2024, 12, 1), date(2025, 3, 1)))
	assert.False(t, PeriodsOverlap(jan[0], jan[1], date(2025, 2, 1), date(2025, 2, 28)))
}

func TestNewReconciliation(t *testing.T) {
	calc := CalculateBalance(100, 500, nil)
	rec, err := NewReconciliation(uuid.New(), "FNB-001", date(2025, 1, 1), date(2025, 1, 31), calc, 0, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, ReconciliationStatusDiscrepancy, rec.Status)
	assert.Equal(t, int64(400), rec.DiscrepancyCents)
	assert.Nil(t, rec.ReconciledAt)
}
