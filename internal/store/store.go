package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)

// Collection names. Each is loaded and rewritten as a whole.
const (
	Parts     = "parts"
	Sales     = "sales"
	Purchases = "purchases"
	Customers = "customers"
	Suppliers = "suppliers"

	PurchaseOrderSequence = "purchase_order_seq"
)

// Backend persists named JSON documents and named counters.
type Backend interface {
	// Read returns ErrNotFound when nothing has been written under name.
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, payload []byte) error
	// WriteAll applies every payload or none of them.
	WriteAll(ctx context.Context, payloads map[string][]byte) error
	// Increment atomically adds one to the counter (starting at 0) and
	// returns the new value.
	Increment(ctx context.Context, name string) (int64, error)
	Close() error
}

type Records struct {
	backend Backend
	logger  *zap.Logger
}

func NewRecords(backend Backend, logger *zap.Logger) *Records {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Records{backend: backend, logger: logger.Named("store")}
}

func (r *Records) Backend() Backend {
	return r.backend
}

func (r *Records) Close() error {
	return r.backend.Close()
}

// Next advances the named counter.
func (r *Records) Next(ctx context.Context, name string) (int64, error) {
	return r.backend.Increment(ctx, name)
}

// Load decodes the named collection. A missing, empty or undecodable record
// yields def, which is written back so the next read finds it. Only backend
// failures are returned as errors.
func Load[T any](ctx context.Context, r *Records, name string, def T) (T, error) {
	payload, err := r.backend.Read(ctx, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return def, fmt.Errorf("read %s: %w", name, err)
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		r.persistDefault(ctx, name, def)
		return def, nil
	}

	var value T
	if err := json.Unmarshal(trimmed, &value); err != nil {
		r.logger.Warn("record undecodable, resetting to default",
			zap.String("collection", name),
			zap.Error(err),
		)
		r.persistDefault(ctx, name, def)
		return def, nil
	}
	return value, nil
}

func Save[T any](ctx context.Context, r *Records, name string, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := r.backend.Write(ctx, name, payload); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (r *Records) persistDefault(ctx context.Context, name string, def any) {
	payload, err := json.Marshal(def)
	if err != nil {
		r.logger.Warn("default not encodable", zap.String("collection", name), zap.Error(err))
		return
	}
	if err := r.backend.Write(ctx, name, payload); err != nil {
		r.logger.Warn("failed to persist default", zap.String("collection", name), zap.Error(err))
	}
}

// UnitOfWork collects collection writes and commits them together.
type UnitOfWork struct {
	records *Records
	staged  map[string][]byte
}

func (r *Records) Begin() *UnitOfWork {
	return &UnitOfWork{records: r, staged: make(map[string][]byte, 4)}
}

// Stage encodes value now so later mutations of the caller's copy are not
// committed by accident. Staging the same name twice keeps the last value.
func Stage[T any](u *UnitOfWork, name string, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	u.staged[name] = payload
	return nil
}

func (u *UnitOfWork) Names() []string {
	names := make([]string, 0, len(u.staged))
	for name := range u.staged {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	if len(u.staged) == 0 {
		return nil
	}
	if err := u.records.backend.WriteAll(ctx, u.staged); err != nil {
		return fmt.Errorf("commit %v: %w", u.Names(), err)
	}
	u.staged = make(map[string][]byte, 4)
	return nil
}
