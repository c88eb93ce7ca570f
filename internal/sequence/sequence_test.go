package sequence

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsledger/backend/internal/store"
	"partsledger/backend/internal/store/memory"
)

func TestPurchaseOrderIDFormat(t *testing.T) {
	assert.Equal(t, "PO00001", PurchaseOrderID(1))
	assert.Equal(t, "PO00042", PurchaseOrderID(42))
	assert.Equal(t, "PO123456", PurchaseOrderID(123456))
}

func TestNextStartsAtOneAndIncrements(t *testing.T) {
	gen := New(store.NewRecords(memory.New(), nil))
	ctx := context.Background()

	first, err := gen.NextPurchaseOrderID(ctx)
	require.NoError(t, err)
	second, err := gen.NextPurchaseOrderID(ctx)
	require.NoError(t, err)

	assert.Equal(t, "PO00001", first)
	assert.Equal(t, "PO00002", second)
}

func TestNextIsUniqueUnderConcurrentCallers(t *testing.T) {
	gen := New(store.NewRecords(memory.New(), nil))
	ctx := context.Background()

	const callers = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := gen.Next(ctx)
			if err != nil {
				t.Errorf("next: %v", err)
				return
			}
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, callers)
	for n := int64(1); n <= callers; n++ {
		assert.True(t, seen[n], "missing %d", n)
	}
}

func TestNextWrapsBackendFailure(t *testing.T) {
	backend := memory.New()
	require.NoError(t, backend.Close())
	gen := New(store.NewRecords(backend, nil))

	_, err := gen.Next(context.Background())
	assert.ErrorIs(t, err, store.ErrClosed)
}
