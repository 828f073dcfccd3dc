package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/google/uuid"
)

type lease struct {
	token     uuid.UUID
	expiresAt time.Time
}

// InMemoryRunLocker grants exclusive runs within one process.
// It is suitable for single-instance deployments and testing.
type InMemoryRunLocker struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

// NewInMemoryRunLocker creates a new in-memory locker
func NewInMemoryRunLocker() *InMemoryRunLocker {
	return &InMemoryRunLocker{
		leases: make(map[string]lease),
		now:    time.Now,
	}
}

// Acquire takes the lock for key unless an unexpired lease exists
func (l *InMemoryRunLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[key]; ok && now.Before(held.expiresAt) {
		return nil, shared.NewConflictError("RUN_IN_PROGRESS", fmt.Sprintf("Another run holds %s", key))
	}

	token := uuid.New()
	l.leases[key] = lease{token: token, expiresAt: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		// a lease taken over after expiry belongs to someone else
		if held, ok := l.leases[key]; ok && held.token == token {
			delete(l.leases, key)
		}
		return nil
	}, nil
}

// Held reports whether key is currently locked (for testing/monitoring)
func (l *InMemoryRunLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, ok := l.leases[key]
	return ok && l.now().Before(held.expiresAt)
}
