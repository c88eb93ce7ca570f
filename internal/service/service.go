package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"partsledger/backend/internal/cache"
	"partsledger/backend/internal/domain"
	"partsledger/backend/internal/inventory"
	"partsledger/backend/internal/sequence"
	"partsledger/backend/internal/store"
)

const storageFailureMessage = "Changes could not be saved; nothing was applied. Please retry."

type Options struct {
	BalanceCacheTTL time.Duration
	Now             func() time.Time
}

// Service runs the sale and purchase lifecycles. Mutating operations are
// serialised and commit every collection they touch in one unit of work.
type Service struct {
	records  *store.Records
	ids      *sequence.Generator
	balances cache.BalanceCache
	logger   *zap.Logger
	ttl      time.Duration
	now      func() time.Time

	mu sync.Mutex
}

func New(records *store.Records, ids *sequence.Generator, balances cache.BalanceCache, logger *zap.Logger, opts Options) *Service {
	if balances == nil {
		balances = cache.NoopBalanceCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ids == nil {
		ids = sequence.New(records)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BalanceCacheTTL <= 0 {
		opts.BalanceCacheTTL = 30 * time.Second
	}

	return &Service{
		records:  records,
		ids:      ids,
		balances: balances,
		logger:   logger.Named("service"),
		ttl:      opts.BalanceCacheTTL,
		now:      opts.Now,
	}
}

func (s *Service) loadParts(ctx context.Context) ([]domain.Part, error) {
	return store.Load(ctx, s.records, store.Parts, []domain.Part{})
}

func (s *Service) loadSales(ctx context.Context) ([]domain.Sale, error) {
	return store.Load(ctx, s.records, store.Sales, []domain.Sale{})
}

func (s *Service) loadPurchases(ctx context.Context) ([]domain.Purchase, error) {
	return store.Load(ctx, s.records, store.Purchases, []domain.Purchase{})
}

func (s *Service) loadCustomers(ctx context.Context) ([]domain.Customer, error) {
	return store.Load(ctx, s.records, store.Customers, []domain.Customer{})
}

func (s *Service) loadSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return store.Load(ctx, s.records, store.Suppliers, []domain.Supplier{})
}

// staged collects the collections an operation rewrites.
type staged struct {
	uow *store.UnitOfWork
	err error
}

func (s *Service) begin() *staged {
	return &staged{uow: s.records.Begin()}
}

func stage[T any](st *staged, name string, value T) {
	if st.err != nil {
		return
	}
	st.err = store.Stage(st.uow, name, value)
}

func (s *Service) commit(ctx context.Context, op string, st *staged) error {
	if st.err != nil {
		return s.storageFailure(op, st.err)
	}
	if err := st.uow.Commit(ctx); err != nil {
		return s.storageFailure(op, err)
	}
	s.logger.Debug("changes committed",
		zap.String("op", op),
		zap.String("actor", actorName(ctx)),
		zap.Strings("collections", st.uow.Names()),
	)
	return nil
}

func (s *Service) storageFailure(op string, err error) error {
	s.logger.Error("record store failure",
		zap.String("op", op),
		zap.Error(err),
		zap.Stack("stack"),
	)
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}

// invalidateBalances drops cached balance views after a mutation. A cache
// failure only costs freshness, so it is logged and ignored.
func (s *Service) invalidateBalances(ctx context.Context, keys ...string) {
	if err := s.balances.Invalidate(ctx, keys...); err != nil {
		s.logger.Warn("balance cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// noteChange logs an inventory side effect and returns the warning list
// extended with its consistency warning, if any.
func (s *Service) noteChange(warnings []string, change domain.InventoryChange, fields ...zap.Field) []string {
	fields = append(fields,
		zap.String("part_number", change.PartNumber),
		zap.String("price", change.Price),
		zap.Int("delta", change.Delta),
	)
	if change.Created {
		s.logger.Info("part created from transaction line", fields...)
	}
	message, ok := inventory.Warning(change)
	if !ok {
		return warnings
	}
	s.logger.Warn(message, append(fields, zap.Int("before", change.Before), zap.Int("after", change.After))...)
	return append(warnings, message)
}

func (s *Service) warn(warnings []string, message string, fields ...zap.Field) []string {
	s.logger.Warn(message, fields...)
	return append(warnings, message)
}

// failureMessage turns an error into the message shown to the caller.
// Storage failures never leak backend details.
func failureMessage(err error) string {
	if errors.Is(err, domain.ErrStorage) {
		return storageFailureMessage
	}
	return err.Error()
}

func failure(err error) domain.Result {
	return domain.Failed(failureMessage(err))
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

func (s *Service) index(parts []domain.Part) *inventory.Index {
	ix := inventory.NewIndex(parts)
	for _, key := range ix.Duplicates() {
		s.logger.Warn("duplicate part entry ignored", zap.String("part", key.String()))
	}
	return ix
}
