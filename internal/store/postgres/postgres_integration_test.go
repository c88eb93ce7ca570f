package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("PARTS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set PARTS_TEST_DATABASE_URL to run postgres integration test")
	}

	s, err := New(context.Background(), databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestWriteAllCommitsEveryRecord(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	parts := fmt.Sprintf("it_parts_%d", stamp)
	sales := fmt.Sprintf("it_sales_%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM records WHERE name = ANY($1)`, []string{parts, sales})
	})

	if _, err := s.Read(ctx, parts); err == nil {
		t.Fatalf("expected missing record before first write")
	}

	err := s.WriteAll(ctx, map[string][]byte{
		parts: []byte(`[{"number":"P100","quantity":5}]`),
		sales: []byte(`[]`),
	})
	if err != nil {
		t.Fatalf("write all: %v", err)
	}

	payload, err := s.Read(ctx, parts)
	if err != nil {
		t.Fatalf("read parts: %v", err)
	}
	if len(payload) == 0 {
		t.Fatalf("expected payload for %s", parts)
	}
	if _, err := s.Read(ctx, sales); err != nil {
		t.Fatalf("read sales: %v", err)
	}
}

func TestIncrementIsSequential(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	name := fmt.Sprintf("it_seq_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sequences WHERE name = $1`, name)
	})

	for want := int64(1); want <= 3; want++ {
		got, err := s.Increment(ctx, name)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
}
