package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReminderRepository implements ReminderRepository using GORM
type GormReminderRepository struct {
	db *gorm.DB
}

// NewGormReminderRepository creates a new GormReminderRepository
func NewGormReminderRepository(db *gorm.DB) *GormReminderRepository {
	return &GormReminderRepository{db: db}
}

// Create inserts a reminder
func (r *GormReminderRepository) Create(ctx context.Context, reminder *finance.Reminder) error {
	model := models.ReminderModelFromDomain(reminder)
	return translateError(r.db.WithContext(ctx).Create(model).Error, "create reminder")
}

// FindLastSentAt returns when the latest SENT reminder for the invoice went out, or nil
func (r *GormReminderRepository) FindLastSentAt(ctx context.Context, tenantID, invoiceID uuid.UUID) (*time.Time, error) {
	var model models.ReminderModel
	err := r.db.WithContext(ctx).
		Select("sent_at").
		Where("tenant_id = ? AND invoice_id = ? AND status = ? AND sent_at IS NOT NULL", tenantID, invoiceID, finance.ReminderStatusSent).
		Order("sent_at DESC").
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateError(err, "find last reminder")
	}
	return model.SentAt, nil
}

// FindByInvoice lists reminders for an invoice, newest first
func (r *GormReminderRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]finance.Reminder, error) {
	var reminderModels []models.ReminderModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("created_at DESC").Order("id DESC").
		Find(&reminderModels).Error; err != nil {
		return nil, translateError(err, "list reminders")
	}
	reminders := make([]finance.Reminder, len(reminderModels))
	for i, model := range reminderModels {
		reminders[i] = *model.ToDomain()
	}
	return reminders, nil
}

var _ finance.ReminderRepository = (*GormReminderRepository)(nil)
