package finance

import (
	"context"
	"errors"
	"testing"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/domain/partner"
	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type matchingFixture struct {
	tenantID    uuid.UUID
	txRepo      *MockTransactionRepository
	invoiceRepo *MockInvoiceRepository
	parentRepo  *MockParentRepository
	allocator   *MockAllocator
	svc         *PaymentMatchingService

	byReference *finance.Transaction
	byAmount    *finance.Transaction
	unknown     *finance.Transaction
	thandiInv   *finance.Invoice
	siphoInv    *finance.Invoice
}

func newMatchingFixture(t *testing.T) *matchingFixture {
	tenantID := uuid.New()
	thandi := parentWith(t, tenantID, "Thandi", "Mokoena", "thandi@example.com", "", partner.ContactEmail)
	sipho := parentWith(t, tenantID, "Sipho", "Dlamini", "sipho@example.com", "", partner.ContactEmail)

	f := &matchingFixture{
		tenantID:    tenantID,
		txRepo:      new(MockTransactionRepository),
		invoiceRepo: new(MockInvoiceRepository),
		parentRepo:  new(MockParentRepository),
		allocator:   new(MockAllocator),
		byReference: credit(t, tenantID, 50000, day(2024, 1, 3), "", "INV-001"),
		byAmount:    credit(t, tenantID, 70000, day(2024, 1, 4), "", ""),
		unknown:     credit(t, tenantID, 12345, day(2024, 1, 5), "", ""),
		thandiInv:   sentInvoice(t, tenantID, thandi.ID, "INV-001", 50000, day(2024, 1, 7)),
		siphoInv:    sentInvoice(t, tenantID, sipho.ID, "INV-002", 70000, day(2024, 1, 7)),
	}
	f.invoiceRepo.On("FindOpenForTenant", mock.Anything, tenantID).
		Return([]finance.Invoice{*f.thandiInv, *f.siphoInv}, nil)
	f.parentRepo.On("FindByIDsForTenant", mock.Anything, tenantID, mock.Anything).
		Return([]partner.Parent{*thandi, *sipho}, nil)
	f.svc = NewPaymentMatchingService(f.txRepo, f.invoiceRepo, f.parentRepo, f.allocator)
	return f
}

func (f *matchingFixture) allCredits() []finance.Transaction {
	return []finance.Transaction{*f.byReference, *f.byAmount, *f.unknown}
}

func TestPaymentMatchingService_MatchPayments(t *testing.T) {
	f := newMatchingFixture(t)
	ctx := context.Background()

	f.txRepo.On("FindUnallocatedCredits", mock.Anything, f.tenantID, []uuid.UUID(nil)).Return(f.allCredits(), nil)
	f.allocator.On("Allocate", mock.Anything, mock.MatchedBy(func(req AllocateRequest) bool {
		return req.TransactionID == f.byReference.ID &&
			req.MatchedBy == finance.MatchedByAuto &&
			len(req.Allocations) == 1 &&
			req.Allocations[0].InvoiceID == f.thandiInv.ID &&
			req.Allocations[0].AmountCents == 50000 &&
			req.Confidence != nil && *req.Confidence == finance.ScoreExactReference
	})).Return(&AllocateResult{TransactionID: f.byReference.ID}, nil).Once()

	result, err := f.svc.MatchPayments(ctx, MatchPaymentsRequest{TenantID: f.tenantID})
	require.NoError(t, err)

	require.Len(t, result.AutoApplied, 1)
	applied := result.AutoApplied[0]
	assert.Equal(t, "INV-001", applied.InvoiceNumber)
	assert.Equal(t, finance.ConfidenceExact, applied.ConfidenceLevel)

	// Amount alone is only a suggestion
	require.Len(t, result.ReviewRequired, 1)
	review := result.ReviewRequired[0]
	assert.Equal(t, f.byAmount.ID, review.Transaction.ID)
	best, ok := review.Best()
	require.True(t, ok)
	assert.Equal(t, f.siphoInv.ID, best.InvoiceID)
	assert.Less(t, best.ConfidenceScore, finance.MinAutoApplyThreshold)

	assert.Equal(t, []uuid.UUID{f.unknown.ID}, result.NoMatch)
	assert.Empty(t, result.Failed)
	f.allocator.AssertExpectations(t)
}

func TestPaymentMatchingService_SelectedTransactions(t *testing.T) {
	f := newMatchingFixture(t)
	ctx := context.Background()

	f.txRepo.On("FindAllForTenant", mock.Anything, f.tenantID, mock.MatchedBy(func(filter finance.TransactionFilter) bool {
		return len(filter.IDs) == 1 && filter.IDs[0] == f.unknown.ID && filter.PageSize == 1
	})).Return([]finance.Transaction{*f.unknown}, nil)

	result, err := f.svc.MatchPayments(ctx, MatchPaymentsRequest{
		TenantID:       f.tenantID,
		TransactionIDs: []uuid.UUID{f.unknown.ID, f.unknown.ID},
	})
	require.NoError(t, err)
	assert.Empty(t, result.AutoApplied)
	assert.Equal(t, []uuid.UUID{f.unknown.ID}, result.NoMatch)
	f.allocator.AssertNotCalled(t, "Allocate", mock.Anything, mock.Anything)
}

func TestPaymentMatchingService_RejectedAllocationIsReported(t *testing.T) {
	f := newMatchingFixture(t)
	ctx := context.Background()

	f.txRepo.On("FindUnallocatedCredits", mock.Anything, f.tenantID, []uuid.UUID(nil)).Return(f.allCredits(), nil)
	f.allocator.On("Allocate", mock.Anything, mock.Anything).
		Return(nil, shared.NewConflictError("CONCURRENT_MODIFICATION", "modified elsewhere"))

	result, err := f.svc.MatchPayments(ctx, MatchPaymentsRequest{TenantID: f.tenantID})
	require.NoError(t, err)
	assert.Empty(t, result.AutoApplied)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, f.byReference.ID, result.Failed[0].TransactionID)
	assert.Contains(t, result.Failed[0].Reason, "modified elsewhere")
}

func TestPaymentMatchingService_StorageFailureAborts(t *testing.T) {
	ctx := context.Background()

	t.Run("allocation store down", func(t *testing.T) {
		f := newMatchingFixture(t)
		f.txRepo.On("FindUnallocatedCredits", mock.Anything, f.tenantID, []uuid.UUID(nil)).Return(f.allCredits(), nil)
		f.allocator.On("Allocate", mock.Anything, mock.Anything).
			Return(nil, shared.NewExternalError("failed to allocate transaction", errors.New("db down")))

		_, err := f.svc.MatchPayments(ctx, MatchPaymentsRequest{TenantID: f.tenantID})
		assert.True(t, shared.IsExternal(err))
	})

	t.Run("allocations committed before the failure are returned", func(t *testing.T) {
		f := newMatchingFixture(t)
		laterRef := credit(t, f.tenantID, 70000, day(2024, 1, 6), "", "INV-002")
		f.txRepo.On("FindUnallocatedCredits", mock.Anything, f.tenantID, []uuid.UUID(nil)).
			Return([]finance.Transaction{*f.byReference, *laterRef}, nil)
		f.allocator.On("Allocate", mock.Anything, mock.MatchedBy(func(req AllocateRequest) bool {
			return req.TransactionID == f.byReference.ID
		})).Return(&AllocateResult{TransactionID: f.byReference.ID}, nil).Once()
		f.allocator.On("Allocate", mock.Anything, mock.MatchedBy(func(req AllocateRequest) bool {
			return req.TransactionID == laterRef.ID
		})).Return(nil, shared.NewExternalError("failed to allocate transaction", errors.New("db down"))).Once()

		result, err := f.svc.MatchPayments(ctx, MatchPaymentsRequest{TenantID: f.tenantID})
		assert.True(t, shared.IsExternal(err))
		require.NotNil(t, result)
		require.Len(t, result.AutoApplied, 1)
		assert.Equal(t, f.byReference.ID, result.AutoApplied[0].TransactionID)
		f.allocator.AssertExpectations(t)
	})

	t.Run("transaction load fails", func(t *testing.T) {
		f := newMatchingFixture(t)
		f.txRepo.On("FindUnallocatedCredits", mock.Anything, f.tenantID, []uuid.UUID(nil)).Return(nil, errors.New("timeout"))

		_, err := f.svc.MatchPayments(ctx, MatchPaymentsRequest{TenantID: f.tenantID})
		assert.True(t, shared.IsExternal(err))
	})

	t.Run("tenant is required", func(t *testing.T) {
		f := newMatchingFixture(t)
		_, err := f.svc.MatchPayments(ctx, MatchPaymentsRequest{})
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("more than 500 selected transactions is rejected", func(t *testing.T) {
		f := newMatchingFixture(t)
		ids := make([]uuid.UUID, 501)
		for i := range ids {
			ids[i] = uuid.New()
		}
		_, err := f.svc.MatchPayments(ctx, MatchPaymentsRequest{TenantID: f.tenantID, TransactionIDs: ids})
		assert.True(t, shared.IsValidation(err))
		assert.Contains(t, err.Error(), "must be at most 500")
		f.txRepo.AssertNotCalled(t, "FindAllForTenant", mock.Anything, mock.Anything, mock.Anything)
	})
}
