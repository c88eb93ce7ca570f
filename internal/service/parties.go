package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"partsledger/backend/internal/balance"
	"partsledger/backend/internal/cache"
	"partsledger/backend/internal/domain"
	"partsledger/backend/internal/store"
)

// ListCustomers returns each customer's stored balance next to the balance
// derived from its credit sales.
func (s *Service) ListCustomers(ctx context.Context) ([]domain.PartyBalance, error) {
	if views, ok := s.cachedBalances(ctx, cache.CustomerBalances); ok {
		return views, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.loadCustomers(ctx)
	if err != nil {
		return nil, s.storageFailure("list customers", err)
	}
	sales, err := s.loadSales(ctx)
	if err != nil {
		return nil, s.storageFailure("list customers", err)
	}

	views := make([]domain.PartyBalance, 0, len(customers))
	for _, customer := range customers {
		views = append(views, balance.CustomerView(customer, sales))
	}
	sortViews(views)
	s.storeBalances(ctx, cache.CustomerBalances, views)
	return views, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.PartyBalance, error) {
	if views, ok := s.cachedBalances(ctx, cache.SupplierBalances); ok {
		return views, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	suppliers, err := s.loadSuppliers(ctx)
	if err != nil {
		return nil, s.storageFailure("list suppliers", err)
	}
	purchases, err := s.loadPurchases(ctx)
	if err != nil {
		return nil, s.storageFailure("list suppliers", err)
	}

	views := make([]domain.PartyBalance, 0, len(suppliers))
	for _, supplier := range suppliers {
		views = append(views, balance.SupplierView(supplier, purchases))
	}
	sortViews(views)
	s.storeBalances(ctx, cache.SupplierBalances, views)
	return views, nil
}

func validateOverride(req domain.BalanceOverrideRequest) error {
	if req.Balance.IsNegative() {
		return fmt.Errorf("balance %s cannot be negative: %w", req.Balance, domain.ErrInvalidInput)
	}
	return nil
}

// OverrideCustomerBalance sets a customer's balance by hand. The difference
// from the derived balance is kept as a manual adjustment so later
// recomputes agree with the override.
func (s *Service) OverrideCustomerBalance(ctx context.Context, customerID string, req domain.BalanceOverrideRequest) (domain.BalanceResult, error) {
	if err := validateOverride(req); err != nil {
		return domain.BalanceResult{Result: failure(err)}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.loadCustomers(ctx)
	if err != nil {
		return balanceStorageFailure(s.storageFailure("override customer balance", err))
	}
	sales, err := s.loadSales(ctx)
	if err != nil {
		return balanceStorageFailure(s.storageFailure("override customer balance", err))
	}

	i := -1
	for n := range customers {
		if customers[n].ID == strings.TrimSpace(customerID) {
			i = n
			break
		}
	}
	if i < 0 {
		err := fmt.Errorf("customer %s %w", customerID, domain.ErrNotFound)
		return domain.BalanceResult{Result: failure(err)}, err
	}

	customer := &customers[i]
	derived := balance.Recompute(sales, balance.CustomerOwes(*customer), balance.SaleAmount)
	previous := customer.Balance
	customer.ManualAdjustment = balance.ManualAdjustment(req.Balance, derived)
	customer.Balance = req.Balance
	customer.UpdatedAt = s.timestamp()

	st := s.begin()
	stage(st, store.Customers, customers)
	if err := s.commit(ctx, "override customer balance", st); err != nil {
		return balanceStorageFailure(err)
	}
	s.invalidateBalances(ctx, cache.CustomerBalances)

	s.logger.Info("customer balance overridden",
		zap.String("customer_id", customer.ID),
		zap.String("previous", previous.String()),
		zap.String("balance", customer.Balance.String()),
		zap.String("manual_adjustment", customer.ManualAdjustment.String()),
	)
	return domain.BalanceResult{
		Result:  domain.Succeeded(fmt.Sprintf("Balance of %s set to %s.", customer.Name, domain.FormatPrice(customer.Balance))),
		Balance: balance.CustomerView(*customer, sales),
	}, nil
}

func (s *Service) OverrideSupplierBalance(ctx context.Context, supplierID string, req domain.BalanceOverrideRequest) (domain.BalanceResult, error) {
	if err := validateOverride(req); err != nil {
		return domain.BalanceResult{Result: failure(err)}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	suppliers, err := s.loadSuppliers(ctx)
	if err != nil {
		return balanceStorageFailure(s.storageFailure("override supplier balance", err))
	}
	purchases, err := s.loadPurchases(ctx)
	if err != nil {
		return balanceStorageFailure(s.storageFailure("override supplier balance", err))
	}

	i := findSupplier(suppliers, strings.TrimSpace(supplierID), "")
	if i < 0 {
		err := fmt.Errorf("supplier %s %w", supplierID, domain.ErrNotFound)
		return domain.BalanceResult{Result: failure(err)}, err
	}

	supplier := &suppliers[i]
	derived := balance.Recompute(purchases, balance.SupplierOwed(*supplier), balance.PurchaseAmount)
	previous := supplier.Balance
	supplier.ManualAdjustment = balance.ManualAdjustment(req.Balance, derived)
	supplier.Balance = req.Balance
	supplier.UpdatedAt = s.timestamp()

	st := s.begin()
	stage(st, store.Suppliers, suppliers)
	if err := s.commit(ctx, "override supplier balance", st); err != nil {
		return balanceStorageFailure(err)
	}
	s.invalidateBalances(ctx, cache.SupplierBalances)

	s.logger.Info("supplier balance overridden",
		zap.String("supplier_id", supplier.ID),
		zap.String("previous", previous.String()),
		zap.String("balance", supplier.Balance.String()),
		zap.String("manual_adjustment", supplier.ManualAdjustment.String()),
	)
	return domain.BalanceResult{
		Result:  domain.Succeeded(fmt.Sprintf("Balance of %s set to %s.", supplier.Name, domain.FormatPrice(supplier.Balance))),
		Balance: balance.SupplierView(*supplier, purchases),
	}, nil
}

// ReconcileBalances rewrites every stored balance that drifted from its live
// value and reports the parties it corrected.
func (s *Service) ReconcileBalances(ctx context.Context) (domain.ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.loadCustomers(ctx)
	if err != nil {
		return reconcileStorageFailure(s.storageFailure("reconcile balances", err))
	}
	sales, err := s.loadSales(ctx)
	if err != nil {
		return reconcileStorageFailure(s.storageFailure("reconcile balances", err))
	}
	suppliers, err := s.loadSuppliers(ctx)
	if err != nil {
		return reconcileStorageFailure(s.storageFailure("reconcile balances", err))
	}
	purchases, err := s.loadPurchases(ctx)
	if err != nil {
		return reconcileStorageFailure(s.storageFailure("reconcile balances", err))
	}

	now := s.timestamp()
	corrected := domain.ReconcileResult{Customers: []domain.PartyBalance{}, Suppliers: []domain.PartyBalance{}}
	for i := range customers {
		view := balance.CustomerView(customers[i], sales)
		if view.InSync() {
			continue
		}
		customers[i].Balance = view.Live
		customers[i].UpdatedAt = now
		corrected.Customers = append(corrected.Customers, view)
		s.logger.Warn("customer balance drifted", zap.String("customer_id", view.PartyID), zap.String("drift", view.Drift.String()))
	}
	for i := range suppliers {
		view := balance.SupplierView(suppliers[i], purchases)
		if view.InSync() {
			continue
		}
		suppliers[i].Balance = view.Live
		suppliers[i].UpdatedAt = now
		corrected.Suppliers = append(corrected.Suppliers, view)
		s.logger.Warn("supplier balance drifted", zap.String("supplier_id", view.PartyID), zap.String("drift", view.Drift.String()))
	}

	total := len(corrected.Customers) + len(corrected.Suppliers)
	if total == 0 {
		corrected.Result = domain.Succeeded("All balances match their transactions.")
		corrected.NoOp = true
		return corrected, nil
	}

	st := s.begin()
	if len(corrected.Customers) > 0 {
		stage(st, store.Customers, customers)
	}
	if len(corrected.Suppliers) > 0 {
		stage(st, store.Suppliers, suppliers)
	}
	if err := s.commit(ctx, "reconcile balances", st); err != nil {
		return reconcileStorageFailure(err)
	}
	s.invalidateBalances(ctx, cache.CustomerBalances, cache.SupplierBalances)

	corrected.Result = domain.Succeeded(fmt.Sprintf("Corrected %d balance(s).", total))
	return corrected, nil
}

func (s *Service) cachedBalances(ctx context.Context, key string) ([]domain.PartyBalance, bool) {
	views, ok, err := s.balances.Get(ctx, key)
	if err != nil {
		s.logger.Warn("balance cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return views, ok
}

func (s *Service) storeBalances(ctx context.Context, key string, views []domain.PartyBalance) {
	if err := s.balances.Set(ctx, key, views, s.ttl); err != nil {
		s.logger.Warn("balance cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func sortViews(views []domain.PartyBalance) {
	sort.SliceStable(views, func(i, j int) bool {
		return strings.ToLower(views[i].Name) < strings.ToLower(views[j].Name)
	})
}

func balanceStorageFailure(err error) (domain.BalanceResult, error) {
	return domain.BalanceResult{Result: failure(err)}, err
}

func reconcileStorageFailure(err error) (domain.ReconcileResult, error) {
	return domain.ReconcileResult{Result: failure(err)}, err
}
