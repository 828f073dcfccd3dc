package cache

import (
	"context"
	"testing"
	"time"

	"github.com/crechebooks/backend/internal/domain/partner"
	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProfileRepository struct {
	mock.Mock
}

func (m *mockProfileRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*partner.CrecheProfile, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.CrecheProfile), args.Error(1)
}

func (m *mockProfileRepository) Save(ctx context.Context, profile *partner.CrecheProfile) error {
	return m.Called(ctx, profile).Error(0)
}

func newProfile(t *testing.T, tenantID uuid.UUID, name string) *partner.CrecheProfile {
	t.Helper()
	profile, err := partner.NewCrecheProfile(tenantID, name)
	require.NoError(t, err)
	return profile
}

func TestCrecheProfileCache_ReadThrough(t *testing.T) {
	repo := new(mockProfileRepository)
	c := NewCrecheProfileCache(repo, WithProfileTTL(time.Minute))
	ctx := context.Background()
	tenantID := uuid.New()

	repo.On("FindByTenant", ctx, tenantID).Return(newProfile(t, tenantID, "Little Stars"), nil).Once()

	first, err := c.FindByTenant(ctx, tenantID)
	require.NoError(t, err)
	second, err := c.FindByTenant(ctx, tenantID)
	require.NoError(t, err)

	assert.Equal(t, "Little Stars", first.Name)
	assert.Equal(t, "Little Stars", second.Name)
	hits, misses := c.GetStats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1, c.Count())
	repo.AssertExpectations(t)

	t.Run("callers cannot mutate the cached copy", func(t *testing.T) {
		second.Name = "Changed"
		again, err := c.FindByTenant(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, "Little Stars", again.Name)
	})
}

func TestCrecheProfileCache_NotFoundIsNotCached(t *testing.T) {
	repo := new(mockProfileRepository)
	c := NewCrecheProfileCache(repo)
	ctx := context.Background()
	tenantID := uuid.New()

	repo.On("FindByTenant", ctx, tenantID).Return(nil, shared.NewNotFoundError("creche_profile", tenantID)).Twice()

	_, err := c.FindByTenant(ctx, tenantID)
	assert.True(t, shared.IsNotFound(err))
	_, err = c.FindByTenant(ctx, tenantID)
	assert.True(t, shared.IsNotFound(err))
	assert.Zero(t, c.Count())
	repo.AssertExpectations(t)
}

func TestCrecheProfileCache_SaveEvicts(t *testing.T) {
	repo := new(mockProfileRepository)
	c := NewCrecheProfileCache(repo)
	ctx := context.Background()
	tenantID := uuid.New()

	original := newProfile(t, tenantID, "Little Stars")
	renamed := newProfile(t, tenantID, "Little Stars Academy")
	repo.On("FindByTenant", ctx, tenantID).Return(original, nil).Once()
	repo.On("Save", ctx, renamed).Return(nil)
	repo.On("FindByTenant", ctx, tenantID).Return(renamed, nil).Once()

	_, err := c.FindByTenant(ctx, tenantID)
	require.NoError(t, err)
	require.NoError(t, c.Save(ctx, renamed))

	found, err := c.FindByTenant(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, "Little Stars Academy", found.Name)

	t.Run("failed save keeps the cache", func(t *testing.T) {
		repo.On("Save", ctx, original).Return(assert.AnError)
		assert.Error(t, c.Save(ctx, original))
		assert.Equal(t, 1, c.Count())
	})
}
