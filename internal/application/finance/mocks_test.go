package finance

import (
	"context"
	"testing"
	"time"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/domain/partner"
	"github.com/crechebooks/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Repository mocks
// =============================================================================

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*finance.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]finance.Invoice, error) {
	args := m.Called(ctx, tenantID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]finance.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*finance.Invoice, error) {
	args := m.Called(ctx, tenantID, invoiceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter finance.InvoiceFilter) ([]finance.Invoice, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]finance.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindOpenForTenant(ctx context.Context, tenantID uuid.UUID) ([]finance.Invoice, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]finance.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindTenantsWithOverdue(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, invoice *finance.Invoice) error {
	return m.Called(ctx, invoice).Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, invoice *finance.Invoice) error {
	return m.Called(ctx, invoice).Error(0)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*finance.Transaction, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.Transaction, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindUnallocatedCredits(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]finance.Transaction, error) {
	args := m.Called(ctx, tenantID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]finance.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindForPeriod(ctx context.Context, tenantID uuid.UUID, bankAccount string, start, end time.Time) ([]finance.Transaction, error) {
	args := m.Called(ctx, tenantID, bankAccount, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]finance.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter finance.TransactionFilter) ([]finance.Transaction, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]finance.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Save(ctx context.Context, tx *finance.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockTransactionRepository) SaveWithLock(ctx context.Context, tx *finance.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockTransactionRepository) MarkReconciled(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, at time.Time) error {
	return m.Called(ctx, tenantID, ids, at).Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) CreateBatch(ctx context.Context, payments []*finance.Payment) error {
	return m.Called(ctx, payments).Error(0)
}

func (m *MockPaymentRepository) FindByTransaction(ctx context.Context, tenantID, transactionID uuid.UUID) ([]finance.Payment, error) {
	args := m.Called(ctx, tenantID, transactionID)
	return args.Get(0).([]finance.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]finance.Payment, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Get(0).([]finance.Payment), args.Error(1)
}

func (m *MockPaymentRepository) SumByTransaction(ctx context.Context, tenantID, transactionID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, transactionID)
	return args.Get(0).(int64), args.Error(1)
}

type MockReconciliationRepository struct {
	mock.Mock
}

func (m *MockReconciliationRepository) Create(ctx context.Context, rec *finance.Reconciliation) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockReconciliationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*finance.Reconciliation, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Reconciliation), args.Error(1)
}

func (m *MockReconciliationRepository) FindOverlapping(ctx context.Context, tenantID uuid.UUID, bankAccount string, start, end time.Time) ([]finance.Reconciliation, error) {
	args := m.Called(ctx, tenantID, bankAccount, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]finance.Reconciliation), args.Error(1)
}

func (m *MockReconciliationRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter finance.ReconciliationFilter) ([]finance.Reconciliation, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]finance.Reconciliation), args.Error(1)
}

func (m *MockReconciliationRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter finance.ReconciliationFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

type MockReminderRepository struct {
	mock.Mock
}

func (m *MockReminderRepository) Create(ctx context.Context, reminder *finance.Reminder) error {
	return m.Called(ctx, reminder).Error(0)
}

func (m *MockReminderRepository) FindLastSentAt(ctx context.Context, tenantID, invoiceID uuid.UUID) (*time.Time, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *MockReminderRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]finance.Reminder, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Get(0).([]finance.Reminder), args.Error(1)
}

type MockParentRepository struct {
	mock.Mock
}

func (m *MockParentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*partner.Parent, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Parent), args.Error(1)
}

func (m *MockParentRepository) FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]partner.Parent, error) {
	args := m.Called(ctx, tenantID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]partner.Parent), args.Error(1)
}

func (m *MockParentRepository) Save(ctx context.Context, parent *partner.Parent) error {
	return m.Called(ctx, parent).Error(0)
}

// =============================================================================
// Collaborator mocks
// =============================================================================

type MockAllocator struct {
	mock.Mock
}

func (m *MockAllocator) Allocate(ctx context.Context, req AllocateRequest) (*AllocateResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AllocateResult), args.Error(1)
}

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, to, subject, body string) (string, error) {
	args := m.Called(ctx, to, subject, body)
	return args.String(0), args.Error(1)
}

type MockMessageSender struct {
	mock.Mock
}

func (m *MockMessageSender) SendMessage(ctx context.Context, phone, body string) (string, error) {
	args := m.Called(ctx, phone, body)
	return args.String(0), args.Error(1)
}

type MockRunLocker struct {
	mock.Mock
}

func (m *MockRunLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func(context.Context) error), args.Error(1)
}

// levelRenderer renders the escalation level into the subject so tests can see the tone
type levelRenderer struct{}

func (levelRenderer) Render(content finance.ReminderContent) (string, string, error) {
	return string(content.Level) + " " + content.InvoiceNumber,
		"Dear " + content.ParentName + ", " + content.Amount.String() + " is overdue", nil
}

// =============================================================================
// Fixtures
// =============================================================================

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sentInvoice(t *testing.T, tenantID, parentID uuid.UUID, number string, totalCents int64, due time.Time) *finance.Invoice {
	t.Helper()
	inv, err := finance.NewInvoice(tenantID, number, parentID, uuid.New(),
		due.AddDate(0, -1, 0), due.AddDate(0, 0, -1), due, valueobject.NewMoneyFromCents(totalCents))
	require.NoError(t, err)
	require.NoError(t, inv.Issue())
	return inv
}

func credit(t *testing.T, tenantID uuid.UUID, cents int64, on time.Time, payee, reference string) *finance.Transaction {
	t.Helper()
	tx, err := finance.NewTransaction(tenantID, "FNB-001", on, "", payee, reference, valueobject.NewMoneyFromCents(cents), true)
	require.NoError(t, err)
	return tx
}

func debit(t *testing.T, tenantID uuid.UUID, cents int64, on time.Time) *finance.Transaction {
	t.Helper()
	tx, err := finance.NewTransaction(tenantID, "FNB-001", on, "Rent", "Landlord", "", valueobject.NewMoneyFromCents(cents), false)
	require.NoError(t, err)
	return tx
}

func parentWith(t *testing.T, tenantID uuid.UUID, first, last, email, whatsapp string, pref partner.ContactPreference) *partner.Parent {
	t.Helper()
	p, err := partner.NewParent(tenantID, first, last)
	require.NoError(t, err)
	require.NoError(t, p.SetContact(email, whatsapp, pref))
	return p
}
