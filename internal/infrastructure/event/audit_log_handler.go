package event

import (
	"context"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditLogHandler writes one structured log line per bookkeeping event
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates an AuditLogHandler
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogHandler{logger: logger.Named("audit")}
}

// EventTypes returns the bookkeeping event types
func (h *AuditLogHandler) EventTypes() []string {
	return []string{
		finance.EventTypePaymentAllocated,
		finance.EventTypeReconciliationCompleted,
		finance.EventTypeReminderSent,
		finance.EventTypeReminderFailed,
	}
}

// Handle logs the event with the fields relevant to its type
func (h *AuditLogHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *finance.PaymentAllocatedEvent:
		fields = append(fields,
			zap.String("transaction_id", e.TransactionID.String()),
			zap.String("invoice_number", e.InvoiceNumber),
			zap.Int64("amount_cents", e.AmountCents),
			zap.String("matched_by", string(e.MatchedBy)),
			zap.String("invoice_status", string(e.InvoiceStatus)),
		)
	case *finance.ReconciliationCompletedEvent:
		fields = append(fields,
			zap.String("bank_account", e.BankAccount),
			zap.String("status", string(e.Status)),
			zap.Int64("discrepancy_cents", e.DiscrepancyCents),
			zap.Int("matched_count", e.MatchedCount),
		)
	case *finance.ReminderRecordedEvent:
		fields = append(fields,
			zap.String("invoice_id", e.InvoiceID.String()),
			zap.String("level", e.EscalationLevel.String()),
			zap.String("delivery_method", string(e.DeliveryMethod)),
		)
		if e.FailureReason != "" {
			fields = append(fields, zap.String("failure_reason", e.FailureReason))
		}
	}

	if event.EventType() == finance.EventTypeReminderFailed {
		h.logger.Warn("Bookkeeping event", fields...)
	} else {
		h.logger.Info("Bookkeeping event", fields...)
	}
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
