package sequence

import (
	"context"
	"fmt"

	"partsledger/backend/internal/store"
)

// Counter is the slice of store.Records the generator needs.
type Counter interface {
	Next(ctx context.Context, name string) (int64, error)
}

// Generator hands out purchase-order numbers. The backend increments
// atomically, so concurrent callers never receive the same value.
type Generator struct {
	counter Counter
	name    string
}

func New(counter Counter) *Generator {
	return &Generator{counter: counter, name: store.PurchaseOrderSequence}
}

func (g *Generator) Next(ctx context.Context) (int64, error) {
	n, err := g.counter.Next(ctx, g.name)
	if err != nil {
		return 0, fmt.Errorf("next %s: %w", g.name, err)
	}
	return n, nil
}

// NextPurchaseOrderID returns the next id in PO00001 form.
func (g *Generator) NextPurchaseOrderID(ctx context.Context) (string, error) {
	n, err := g.Next(ctx)
	if err != nil {
		return "", err
	}
	return PurchaseOrderID(n), nil
}

func PurchaseOrderID(n int64) string {
	return fmt.Sprintf("PO%05d", n)
}
