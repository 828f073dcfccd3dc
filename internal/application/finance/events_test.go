package finance

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/domain/partner"
	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) published() []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shared.DomainEvent(nil), p.events...)
}

func TestAllocationService_PublishesPaymentAllocated(t *testing.T) {
	f := newAllocationFixture()
	publisher := &recordingPublisher{}
	WithAllocationEventPublisher(publisher)(f.svc)
	ctx := context.Background()
	tenantID := uuid.New()

	tx := credit(t, tenantID, 150000, day(2024, 1, 5), "", "")
	invA := sentInvoice(t, tenantID, uuid.New(), "INV-A", 100000, day(2024, 1, 7))
	invB := sentInvoice(t, tenantID, uuid.New(), "INV-B", 80000, day(2024, 1, 7))

	f.txRepo.On("FindByIDForUpdate", mock.Anything, tenantID, tx.ID).Return(tx, nil)
	f.invoiceRepo.On("FindByIDsForTenant", mock.Anything, tenantID, []uuid.UUID{invA.ID, invB.ID}).
		Return([]finance.Invoice{*invA, *invB}, nil)
	f.paymentRepo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)
	f.invoiceRepo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)
	f.txRepo.On("SaveWithLock", mock.Anything, tx).Return(nil)

	result, err := f.svc.Allocate(ctx, AllocateRequest{
		TenantID:      tenantID,
		TransactionID: tx.ID,
		Allocations: []AllocationLine{
			{InvoiceID: invA.ID, AmountCents: 100000},
			{InvoiceID: invB.ID, AmountCents: 50000},
		},
	})
	require.NoError(t, err)

	events := publisher.published()
	require.Len(t, events, 2)
	first, ok := events[0].(*finance.PaymentAllocatedEvent)
	require.True(t, ok)
	assert.Equal(t, finance.EventTypePaymentAllocated, first.EventType())
	assert.Equal(t, result.Payments[0].ID, first.AggregateID())
	assert.Equal(t, tenantID, first.TenantID())
	assert.Equal(t, "INV-A", first.InvoiceNumber)
	assert.Equal(t, finance.InvoiceStatusPaid, first.InvoiceStatus)

	second := events[1].(*finance.PaymentAllocatedEvent)
	assert.Equal(t, int64(50000), second.AmountCents)
	assert.Equal(t, int64(30000), second.OutstandingCents)
	assert.True(t, second.OccurredAt().Equal(day(2024, 1, 8)))
}

func TestAllocationService_RejectedAllocationPublishesNothing(t *testing.T) {
	f := newAllocationFixture()
	publisher := &recordingPublisher{}
	WithAllocationEventPublisher(publisher)(f.svc)
	tenantID := uuid.New()

	tx := credit(t, tenantID, 1000, day(2024, 1, 5), "", "")
	f.txRepo.On("FindByIDForUpdate", mock.Anything, tenantID, tx.ID).Return(tx, nil)

	_, err := f.svc.Allocate(context.Background(), AllocateRequest{
		TenantID:      tenantID,
		TransactionID: tx.ID,
		Allocations:   []AllocationLine{{InvoiceID: uuid.New(), AmountCents: 5000}},
	})
	assert.True(t, shared.IsConflict(err))
	assert.Empty(t, publisher.published())
}

func TestReconciliationService_PublishesCompleted(t *testing.T) {
	f := newReconciliationFixture()
	publisher := &recordingPublisher{err: errors.New("bus closed")}
	WithReconciliationEventPublisher(publisher)(f.svc)
	ctx := context.Background()

	txs := f.januaryTransactions(t)
	f.recRepo.On("FindOverlapping", mock.Anything, f.tenantID, "FNB-001", mock.Anything, mock.Anything).
		Return([]finance.Reconciliation{}, nil)
	f.txRepo.On("FindForPeriod", mock.Anything, f.tenantID, "FNB-001", mock.Anything, mock.Anything).Return(txs, nil)
	f.recRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	rec, err := f.svc.Reconcile(ctx, f.january(100000, 130000))
	require.NoError(t, err, "a publish failure must not fail the reconciliation")

	events := publisher.published()
	require.Len(t, events, 1)
	completed := events[0].(*finance.ReconciliationCompletedEvent)
	assert.Equal(t, rec.ID, completed.AggregateID())
	assert.Equal(t, finance.ReconciliationStatusDiscrepancy, completed.Status)
	assert.Equal(t, int64(-1000), completed.DiscrepancyCents)
	assert.True(t, completed.PeriodEnd.Equal(day(2024, 1, 31)))
}

func TestReminderService_PublishesRecordedOutcome(t *testing.T) {
	f := newReminderFixture()
	publisher := &recordingPublisher{}
	parent := f.parent(t, "thandi@example.com", "", partner.ContactEmail)
	sent := f.invoice(t, parent, "INV-101", day(2024, 3, 1))
	bounced := f.invoice(t, parent, "INV-102", day(2024, 3, 10))
	f.neverReminded(sent.ID, bounced.ID)

	f.email.On("SendEmail", mock.Anything, "thandi@example.com", "FINAL INV-101", mock.Anything).Return("msg-1", nil)
	f.email.On("SendEmail", mock.Anything, "thandi@example.com", "FIRM INV-102", mock.Anything).
		Return("", errors.New("mailbox unavailable"))

	_, err := f.service(WithReminderEventPublisher(publisher), WithReminderConcurrency(1)).
		SendReminders(context.Background(), SendRemindersRequest{
			TenantID:   f.tenantID,
			InvoiceIDs: []uuid.UUID{sent.ID, bounced.ID},
		})
	require.NoError(t, err)

	events := publisher.published()
	require.Len(t, events, 2)
	byInvoice := make(map[uuid.UUID]*finance.ReminderRecordedEvent)
	for _, e := range events {
		recorded := e.(*finance.ReminderRecordedEvent)
		byInvoice[recorded.InvoiceID] = recorded
	}
	assert.Equal(t, finance.EventTypeReminderSent, byInvoice[sent.ID].EventType())
	assert.Equal(t, finance.EscalationFinal, byInvoice[sent.ID].EscalationLevel)
	assert.Equal(t, finance.EventTypeReminderFailed, byInvoice[bounced.ID].EventType())
	assert.Contains(t, byInvoice[bounced.ID].FailureReason, "mailbox unavailable")
}
