package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/crechebooks/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// arrearsStatuses are the invoice states that count towards arrears
var arrearsStatuses = []finance.InvoiceStatus{
	finance.InvoiceStatusSent,
	finance.InvoiceStatusViewed,
	finance.InvoiceStatusPartiallyPaid,
	finance.InvoiceStatusOverdue,
}

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db, now: time.Now}
}

// FindByIDForTenant finds an invoice by ID for a specific tenant
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*finance.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("invoice", id)
		}
		return nil, translateError(err, "find invoice")
	}
	return model.ToDomain(), nil
}

// FindByIDsForTenant finds the invoices with the given IDs; missing IDs are simply absent
func (r *GormInvoiceRepository) FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]finance.Invoice, error) {
	if len(ids) == 0 {
		return []finance.Invoice{}, nil
	}
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&invoiceModels).Error; err != nil {
		return nil, translateError(err, "find invoices")
	}
	return invoicesToDomain(invoiceModels), nil
}

// FindByInvoiceNumber finds an invoice by number for a tenant
func (r *GormInvoiceRepository) FindByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*finance.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		First(&model, "invoice_number = ? AND tenant_id = ?", invoiceNumber, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("invoice", invoiceNumber)
		}
		return nil, translateError(err, "find invoice by number")
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds invoices for a tenant with filtering
func (r *GormInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter finance.InvoiceFilter) ([]finance.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)

	if filter.ParentID != nil {
		query = query.Where("parent_id = ?", *filter.ParentID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.DueTo != nil {
		query = query.Where("due_date <= ?", *filter.DueTo)
	}
	if filter.Unpaid {
		query = query.Where("amount_paid_cents < total_cents")
	}

	sortField := ValidateSortField(filter.OrderBy, InvoiceSortFields, "due_date")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(sortField + " " + sortOrder).Order("id ASC")

	if filter.PageSize > 0 {
		query = query.Limit(filter.Limit()).Offset(filter.Offset())
	}

	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, translateError(err, "list invoices")
	}
	return invoicesToDomain(invoiceModels), nil
}

// FindOpenForTenant finds issued, unpaid invoices that can receive payments
func (r *GormInvoiceRepository) FindOpenForTenant(ctx context.Context, tenantID uuid.UUID) ([]finance.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ? AND amount_paid_cents < total_cents", tenantID, arrearsStatuses).
		Order("due_date ASC").Order("id ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, translateError(err, "list open invoices")
	}
	return invoicesToDomain(invoiceModels), nil
}

// FindTenantsWithOverdue lists tenants that have unpaid invoices due before asOf
func (r *GormInvoiceRepository) FindTenantsWithOverdue(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	var tenantIDs []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Distinct("tenant_id").
		Where("status IN ? AND amount_paid_cents < total_cents AND due_date < ?", arrearsStatuses, asOf).
		Order("tenant_id").
		Pluck("tenant_id", &tenantIDs).Error; err != nil {
		return nil, translateError(err, "list tenants with overdue invoices")
	}
	return tenantIDs, nil
}

// OutstandingCentsByTenant sums the unpaid part of overdue invoices per tenant
func (r *GormInvoiceRepository) OutstandingCentsByTenant(ctx context.Context) (map[uuid.UUID]int64, error) {
	var rows []struct {
		TenantID uuid.UUID
		Cents    int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Select("tenant_id, SUM(total_cents - amount_paid_cents) AS cents").
		Where("status IN ? AND amount_paid_cents < total_cents AND due_date < ?", arrearsStatuses, r.now()).
		Group("tenant_id").
		Scan(&rows).Error; err != nil {
		return nil, translateError(err, "sum outstanding invoices")
	}
	result := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		result[row.TenantID] = row.Cents
	}
	return result, nil
}

// Save creates or updates an invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *finance.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	return translateError(r.db.WithContext(ctx).Save(model).Error, "save invoice")
}

// SaveWithLock saves with optimistic locking. The invoice carries the version its
// mutation produced, so the stored row must still be exactly one version behind.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *finance.Invoice) error {
	expected := invoice.Version - 1
	model := models.InvoiceModelFromDomain(invoice)
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND tenant_id = ? AND version = ?", invoice.ID, invoice.TenantID, expected).
		Select("*").Omit("id", "tenant_id", "created_at").
		Updates(model)
	if result.Error != nil {
		return translateError(result.Error, "save invoice")
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("CONCURRENT_MODIFICATION", "The invoice has been modified by another process")
	}
	return nil
}

func invoicesToDomain(invoiceModels []models.InvoiceModel) []finance.Invoice {
	invoices := make([]finance.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices
}

var _ finance.InvoiceRepository = (*GormInvoiceRepository)(nil)
