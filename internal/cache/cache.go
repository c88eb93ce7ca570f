package cache

import (
	"context"
	"sync"
	"time"

	"partsledger/backend/internal/domain"
)

const (
	CustomerBalances = "balances:customers"
	SupplierBalances = "balances:suppliers"
)

// BalanceCache holds computed party balance views between mutations.
type BalanceCache interface {
	Get(ctx context.Context, key string) ([]domain.PartyBalance, bool, error)
	Set(ctx context.Context, key string, value []domain.PartyBalance, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

type NoopBalanceCache struct{}

func (NoopBalanceCache) Get(_ context.Context, _ string) ([]domain.PartyBalance, bool, error) {
	return nil, false, nil
}

func (NoopBalanceCache) Set(_ context.Context, _ string, _ []domain.PartyBalance, _ time.Duration) error {
	return nil
}

func (NoopBalanceCache) Invalidate(_ context.Context, _ ...string) error {
	return nil
}

type memoryEntry struct {
	value     []domain.PartyBalance
	expiresAt time.Time
}

// MemoryBalanceCache is an in-process cache, used when redis is not configured.
type MemoryBalanceCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryBalanceCache() *MemoryBalanceCache {
	return &MemoryBalanceCache{entries: map[string]memoryEntry{}, now: time.Now}
}

func (c *MemoryBalanceCache) Get(_ context.Context, key string) ([]domain.PartyBalance, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return append([]domain.PartyBalance(nil), entry.value...), true, nil
}

func (c *MemoryBalanceCache) Set(_ context.Context, key string, value []domain.PartyBalance, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{value: append([]domain.PartyBalance(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

func (c *MemoryBalanceCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}
