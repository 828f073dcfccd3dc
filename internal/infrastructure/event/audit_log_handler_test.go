package event

import (
	"context"
	"testing"
	"time"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuditLogHandler_ThroughBus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(NewAuditLogHandler(zap.New(core)))

	tenantID := uuid.New()
	at := time.Date(2024, 3, 21, 8, 0, 0, 0, time.UTC)
	reminder, err := finance.NewReminder(tenantID, uuid.New(), uuid.New(), finance.EscalationFirm,
		finance.DeliveryMethodWhatsApp, "Reminder", "Please pay", at)
	require.NoError(t, err)
	require.NoError(t, reminder.MarkFailed(at, "whatsapp: rate limited"))

	inv, err := finance.NewInvoice(tenantID, "INV-2024-009", uuid.New(), uuid.New(),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), valueobject.NewMoneyFromCents(120000))
	require.NoError(t, err)
	payment, err := finance.NewPayment(tenantID, uuid.New(), inv.ID, valueobject.NewMoneyFromCents(20000),
		at, finance.MatchTypePartial, finance.MatchedByUser, nil)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(),
		finance.NewReminderRecordedEvent(reminder, at),
		finance.NewPaymentAllocatedEvent(payment, inv, at),
	))

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "audit", entries[0].LoggerName)
	fields := entries[0].ContextMap()
	assert.Equal(t, finance.EventTypeReminderFailed, fields["event_type"])
	assert.Equal(t, "FIRM", fields["level"])
	assert.Equal(t, "whatsapp: rate limited", fields["failure_reason"])
	assert.Equal(t, tenantID.String(), fields["tenant_id"])

	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	fields = entries[1].ContextMap()
	assert.Equal(t, "INV-2024-009", fields["invoice_number"])
	assert.Equal(t, int64(20000), fields["amount_cents"])
}
