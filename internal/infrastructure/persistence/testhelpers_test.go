package persistence

import (
	"testing"
	"time"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/domain/shared/valueobject"
	"github.com/crechebooks/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an in-memory sqlite database with every model migrated.
// A single connection keeps all statements on the same in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// issuedInvoice builds a SENT invoice due on dueDate
func issuedInvoice(t *testing.T, tenantID uuid.UUID, number string, totalCents int64, dueDate time.Time) *finance.Invoice {
	t.Helper()
	inv, err := finance.NewInvoice(tenantID, number, uuid.New(), uuid.New(),
		dueDate.AddDate(0, -1, 0), dueDate.AddDate(0, 0, -1), dueDate,
		valueobject.NewMoneyFromCents(totalCents))
	require.NoError(t, err)
	require.NoError(t, inv.Issue())
	return inv
}

// creditTransaction builds an unallocated bank credit
func creditTransaction(t *testing.T, tenantID uuid.UUID, account string, date time.Time, cents int64) *finance.Transaction {
	t.Helper()
	tx, err := finance.NewTransaction(tenantID, account, date, "EFT deposit", "J Smith", "INV-001",
		valueobject.NewMoneyFromCents(cents), true)
	require.NoError(t, err)
	return tx
}
