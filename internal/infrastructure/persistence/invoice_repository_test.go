package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/crechebooks/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormInvoiceRepository_FindByIDForTenant(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	inv := issuedInvoice(t, tenantID, "INV-2024-001", 250000, day(2024, 3, 7))
	require.NoError(t, repo.Save(ctx, inv))

	t.Run("finds invoice within tenant", func(t *testing.T) {
		found, err := repo.FindByIDForTenant(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, "INV-2024-001", found.InvoiceNumber)
		assert.Equal(t, int64(250000), found.TotalCents)
		assert.Equal(t, finance.InvoiceStatusSent, found.Status)
		assert.Equal(t, inv.Version, found.Version)
	})

	t.Run("other tenant gets not found", func(t *testing.T) {
		_, err := repo.FindByIDForTenant(ctx, uuid.New(), inv.ID)
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("finds by invoice number", func(t *testing.T) {
		found, err := repo.FindByInvoiceNumber(ctx, tenantID, "INV-2024-001")
		require.NoError(t, err)
		assert.Equal(t, inv.ID, found.ID)

		_, err = repo.FindByInvoiceNumber(ctx, tenantID, "INV-MISSING")
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("missing ids are absent from batch lookup", func(t *testing.T) {
		found, err := repo.FindByIDsForTenant(ctx, tenantID, []uuid.UUID{inv.ID, uuid.New()})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, inv.ID, found[0].ID)
	})
}

func TestGormInvoiceRepository_SaveWithLock(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	inv := issuedInvoice(t, tenantID, "INV-2024-002", 100000, day(2024, 3, 7))
	require.NoError(t, repo.Save(ctx, inv))

	t.Run("saves a single mutation", func(t *testing.T) {
		loaded, err := repo.FindByIDForTenant(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.ApplyPayment(valueobject.NewMoneyFromCents(40000), time.Now()))

		require.NoError(t, repo.SaveWithLock(ctx, loaded))

		reloaded, err := repo.FindByIDForTenant(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(40000), reloaded.AmountPaidCents)
		assert.Equal(t, finance.InvoiceStatusPartiallyPaid, reloaded.Status)
		assert.Equal(t, loaded.Version, reloaded.Version)
	})

	t.Run("stale copy is rejected", func(t *testing.T) {
		first, err := repo.FindByIDForTenant(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		second, err := repo.FindByIDForTenant(ctx, tenantID, inv.ID)
		require.NoError(t, err)

		require.NoError(t, first.ApplyPayment(valueobject.NewMoneyFromCents(10000), time.Now()))
		require.NoError(t, repo.SaveWithLock(ctx, first))

		require.NoError(t, second.ApplyPayment(valueobject.NewMoneyFromCents(10000), time.Now()))
		err = repo.SaveWithLock(ctx, second)
		assert.True(t, shared.IsConflict(err))

		reloaded, err := repo.FindByIDForTenant(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(50000), reloaded.AmountPaidCents)
	})
}

func TestGormInvoiceRepository_FindAllForTenant(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	early := issuedInvoice(t, tenantID, "INV-A", 100000, day(2024, 1, 7))
	late := issuedInvoice(t, tenantID, "INV-B", 100000, day(2024, 2, 7))
	paid := issuedInvoice(t, tenantID, "INV-C", 50000, day(2024, 1, 7))
	require.NoError(t, paid.ApplyPayment(valueobject.NewMoneyFromCents(50000), time.Now()))
	for _, inv := range []*finance.Invoice{early, late, paid} {
		require.NoError(t, repo.Save(ctx, inv))
	}
	require.NoError(t, repo.Save(ctx, issuedInvoice(t, uuid.New(), "INV-OTHER", 100000, day(2024, 1, 7))))

	t.Run("unpaid filter orders by due date", func(t *testing.T) {
		invoices, err := repo.FindAllForTenant(ctx, tenantID, finance.InvoiceFilter{
			Statuses: arrearsStatuses,
			Unpaid:   true,
		})
		require.NoError(t, err)
		require.Len(t, invoices, 2)
		assert.Equal(t, "INV-A", invoices[0].InvoiceNumber)
		assert.Equal(t, "INV-B", invoices[1].InvoiceNumber)
	})

	t.Run("due-to filter", func(t *testing.T) {
		dueTo := day(2024, 1, 31)
		invoices, err := repo.FindAllForTenant(ctx, tenantID, finance.InvoiceFilter{DueTo: &dueTo})
		require.NoError(t, err)
		assert.Len(t, invoices, 2)
	})

	t.Run("parent filter", func(t *testing.T) {
		invoices, err := repo.FindAllForTenant(ctx, tenantID, finance.InvoiceFilter{ParentID: &late.ParentID})
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		assert.Equal(t, late.ID, invoices[0].ID)
	})

	t.Run("open invoices exclude paid", func(t *testing.T) {
		invoices, err := repo.FindOpenForTenant(ctx, tenantID)
		require.NoError(t, err)
		assert.Len(t, invoices, 2)
	})
}

func TestGormInvoiceRepository_Overdue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormInvoiceRepository(db)
	repo.now = func() time.Time { return day(2024, 3, 1) }
	ctx := context.Background()

	overdueTenant := uuid.New()
	currentTenant := uuid.New()
	require.NoError(t, repo.Save(ctx, issuedInvoice(t, overdueTenant, "INV-1", 120000, day(2024, 2, 7))))
	require.NoError(t, repo.Save(ctx, issuedInvoice(t, overdueTenant, "INV-2", 30000, day(2024, 2, 14))))
	require.NoError(t, repo.Save(ctx, issuedInvoice(t, currentTenant, "INV-3", 99000, day(2024, 3, 7))))

	t.Run("tenants with overdue invoices", func(t *testing.T) {
		tenants, err := repo.FindTenantsWithOverdue(ctx, day(2024, 3, 1))
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{overdueTenant}, tenants)
	})

	t.Run("outstanding cents per tenant", func(t *testing.T) {
		outstanding, err := repo.OutstandingCentsByTenant(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(150000), outstanding[overdueTenant])
		assert.NotContains(t, outstanding, currentTenant)
	})
}
