package cache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsledger/backend/internal/domain"
)

func TestMemoryBalanceCacheExpiresAndInvalidates(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	c := NewMemoryBalanceCache()
	c.now = func() time.Time { return now }

	views := []domain.PartyBalance{{PartyID: "CUS-1", Name: "Asha", Live: decimal.NewFromInt(40)}}
	require.NoError(t, c.Set(ctx, CustomerBalances, views, time.Minute))

	got, ok, err := c.Get(ctx, CustomerBalances)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "CUS-1", got[0].PartyID)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, CustomerBalances)
	require.NoError(t, err)
	assert.False(t, ok, "entry expired")

	require.NoError(t, c.Set(ctx, SupplierBalances, views, 0))
	require.NoError(t, c.Invalidate(ctx, CustomerBalances, SupplierBalances))
	_, ok, _ = c.Get(ctx, SupplierBalances)
	assert.False(t, ok)
}

func TestNoopBalanceCacheNeverHits(t *testing.T) {
	var c BalanceCache = NoopBalanceCache{}
	require.NoError(t, c.Set(context.Background(), CustomerBalances, []domain.PartyBalance{{}}, time.Minute))
	_, ok, err := c.Get(context.Background(), CustomerBalances)
	require.NoError(t, err)
	assert.False(t, ok)
}
