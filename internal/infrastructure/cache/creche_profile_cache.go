package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/crechebooks/backend/internal/domain/partner"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	DefaultProfileTTL      = 10 * time.Minute
	defaultCleanupInterval = 30 * time.Minute
)

// CrecheProfileCache is a read-through in-process cache in front of a CrecheProfileRepository.
// Lookups that fail are not cached.
type CrecheProfileCache struct {
	repo   partner.CrecheProfileRepository
	cache  *gocache.Cache
	ttl    time.Duration
	logger *zap.Logger

	hits   int64
	misses int64
}

// CrecheProfileCacheOption is a functional option for configuring the cache
type CrecheProfileCacheOption func(*CrecheProfileCache)

// WithProfileTTL sets how long a profile stays cached
func WithProfileTTL(ttl time.Duration) CrecheProfileCacheOption {
	return func(c *CrecheProfileCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithProfileCacheLogger sets the logger for the cache
func WithProfileCacheLogger(logger *zap.Logger) CrecheProfileCacheOption {
	return func(c *CrecheProfileCache) {
		c.logger = logger
	}
}

// NewCrecheProfileCache wraps repo with a TTL cache
func NewCrecheProfileCache(repo partner.CrecheProfileRepository, opts ...CrecheProfileCacheOption) *CrecheProfileCache {
	c := &CrecheProfileCache{
		repo:   repo,
		ttl:    DefaultProfileTTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = gocache.New(c.ttl, defaultCleanupInterval)
	return c
}

func profileCacheKey(tenantID uuid.UUID) string {
	return "creche_profile:" + tenantID.String()
}

// FindByTenant returns the cached profile or loads it from the repository
func (c *CrecheProfileCache) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*partner.CrecheProfile, error) {
	key := profileCacheKey(tenantID)
	if v, ok := c.cache.Get(key); ok {
		atomic.AddInt64(&c.hits, 1)
		profile := *v.(*partner.CrecheProfile)
		return &profile, nil
	}
	atomic.AddInt64(&c.misses, 1)

	profile, err := c.repo.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	stored := *profile
	c.cache.Set(key, &stored, gocache.DefaultExpiration)
	c.logger.Debug("creche profile cached", zap.String("tenant_id", tenantID.String()))
	return profile, nil
}

// Save writes through to the repository and evicts the cached copy
func (c *CrecheProfileCache) Save(ctx context.Context, profile *partner.CrecheProfile) error {
	if err := c.repo.Save(ctx, profile); err != nil {
		return err
	}
	c.Invalidate(profile.TenantID)
	return nil
}

// Invalidate drops the cached profile of a tenant
func (c *CrecheProfileCache) Invalidate(tenantID uuid.UUID) {
	c.cache.Delete(profileCacheKey(tenantID))
}

// GetStats returns cache statistics
func (c *CrecheProfileCache) GetStats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Count returns the number of cached profiles
func (c *CrecheProfileCache) Count() int {
	return c.cache.ItemCount()
}

var _ partner.CrecheProfileRepository = (*CrecheProfileCache)(nil)
