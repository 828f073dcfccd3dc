package persistence

import (
	"context"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentRepository implements PaymentRepository using GORM.
// Payments are append-only: there is no update or delete.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// CreateBatch inserts payments
func (r *GormPaymentRepository) CreateBatch(ctx context.Context, payments []*finance.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	paymentModels := make([]*models.PaymentModel, len(payments))
	for i, p := range payments {
		paymentModels[i] = models.PaymentModelFromDomain(p)
	}
	return translateError(r.db.WithContext(ctx).Create(&paymentModels).Error, "create payments")
}

// FindByTransaction finds payments allocated from a transaction
func (r *GormPaymentRepository) FindByTransaction(ctx context.Context, tenantID, transactionID uuid.UUID) ([]finance.Payment, error) {
	var paymentModels []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND transaction_id = ?", tenantID, transactionID).
		Order("created_at ASC").
		Find(&paymentModels).Error; err != nil {
		return nil, translateError(err, "list payments by transaction")
	}
	return paymentsToDomain(paymentModels), nil
}

// FindByInvoice finds payments allocated to an invoice
func (r *GormPaymentRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]finance.Payment, error) {
	var paymentModels []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("created_at ASC").
		Find(&paymentModels).Error; err != nil {
		return nil, translateError(err, "list payments by invoice")
	}
	return paymentsToDomain(paymentModels), nil
}

// SumByTransaction returns the total allocated from a transaction
func (r *GormPaymentRepository) SumByTransaction(ctx context.Context, tenantID, transactionID uuid.UUID) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("tenant_id = ? AND transaction_id = ?", tenantID, transactionID).
		Scan(&total).Error; err != nil {
		return 0, translateError(err, "sum payments")
	}
	return total, nil
}

func paymentsToDomain(paymentModels []models.PaymentModel) []finance.Payment {
	payments := make([]finance.Payment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments
}

var _ finance.PaymentRepository = (*GormPaymentRepository)(nil)
