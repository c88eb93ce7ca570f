package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"

	"partsledger/backend/internal/domain"
	"partsledger/backend/internal/store"
)

var _ store.Backend = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	records  map[string][]byte
	counters map[string]int64
	closed   bool
}

func New() *Store {
	return &Store{
		records:  make(map[string][]byte),
		counters: make(map[string]int64),
	}
}

// NewSeeded returns a store with a small demo catalogue, used when the
// server runs without persistent storage.
func NewSeeded() *Store {
	s := New()
	parts := []domain.Part{
		{Number: "BRK-PAD-01", Name: "Brake Pad Set", Manufacturer: "Bosch", Price: decimal.RequireFromString("850"), Quantity: 24, Category: "Brakes", Shelf: "A1"},
		{Number: "OIL-FLT-02", Name: "Oil Filter", AlternateName: "Engine Oil Filter", Manufacturer: "Mahle", Price: decimal.RequireFromString("320"), Quantity: 60, Category: "Filters", Shelf: "B3"},
		{Number: "SPK-PLG-04", Name: "Spark Plug", Manufacturer: "NGK", Price: decimal.RequireFromString("145.50"), Quantity: 120, Category: "Ignition", Shelf: "C2"},
		{Number: "CLT-CBL-01", Name: "Clutch Cable", Manufacturer: "Minda", Price: decimal.RequireFromString("410"), Quantity: 15, Category: "Transmission", Shelf: "D4"},
	}
	payload, err := json.Marshal(parts)
	if err != nil {
		panic("memory store: encode seed parts: " + err.Error())
	}
	s.records[store.Parts] = payload
	return s
}

func (s *Store) Read(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}
	payload, exists := s.records[name]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneBytes(payload), nil
}

func (s *Store) Write(_ context.Context, name string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	s.records[name] = cloneBytes(payload)
	return nil
}

func (s *Store) WriteAll(_ context.Context, payloads map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	for name, payload := range payloads {
		s.records[name] = cloneBytes(payload)
	}
	return nil
}

func (s *Store) Increment(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, store.ErrClosed
	}
	s.counters[name]++
	return s.counters[name], nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneBytes(src []byte) []byte {
	if src == nil {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}
