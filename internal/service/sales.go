package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"partsledger/backend/internal/balance"
	"partsledger/backend/internal/cache"
	"partsledger/backend/internal/domain"
	"partsledger/backend/internal/inventory"
	"partsledger/backend/internal/store"
	"partsledger/backend/internal/xid"
)

func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleResult, error) {
	sale, err := s.buildSale(req)
	if err != nil {
		return domain.SaleResult{Result: failure(err)}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parts, err := s.loadParts(ctx)
	if err != nil {
		return saleStorageFailure(s.storageFailure("create sale", err))
	}
	sales, err := s.loadSales(ctx)
	if err != nil {
		return saleStorageFailure(s.storageFailure("create sale", err))
	}
	customers, err := s.loadCustomers(ctx)
	if err != nil {
		return saleStorageFailure(s.storageFailure("create sale", err))
	}

	ix := s.index(parts)
	var warnings []string
	adjustments := make([]domain.InventoryChange, 0, len(sale.Items))
	for _, line := range sale.Items {
		change := ix.Adjust(line.Key(), -line.Quantity, inventory.FloorAtZero, domain.Part{})
		adjustments = append(adjustments, change)
		warnings = s.noteChange(warnings, change, zap.String("sale_id", sale.ID))
	}

	customers, customer := s.upsertCustomer(customers, req, sale)
	sales = append(sales, sale)

	st := s.begin()
	stage(st, store.Parts, ix.Parts())
	stage(st, store.Sales, sales)
	stage(st, store.Customers, customers)
	if err := s.commit(ctx, "create sale", st); err != nil {
		return saleStorageFailure(err)
	}
	s.invalidateBalances(ctx, cache.CustomerBalances)

	result := domain.Succeeded(fmt.Sprintf("Sale %s recorded for %s.", sale.ID, sale.BuyerName))
	result.Warnings = warnings
	return domain.SaleResult{Result: result, Sale: &sale, Customer: &customer, Adjustments: adjustments}, nil
}

func (s *Service) ChangeSalePaymentType(ctx context.Context, saleID string, req domain.SalePaymentTypeRequest) (domain.SaleResult, error) {
	target, err := domain.ParseSalePaymentType(req.PaymentType)
	if err != nil {
		return domain.SaleResult{Result: failure(err)}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sales, err := s.loadSales(ctx)
	if err != nil {
		return saleStorageFailure(s.storageFailure("change sale payment type", err))
	}
	i, err := findSale(sales, saleID)
	if err != nil {
		return domain.SaleResult{Result: failure(err)}, err
	}
	sale := sales[i]

	if sale.Status == domain.SaleCancelled {
		err := fmt.Errorf("sale %s is cancelled; payment type cannot change: %w", sale.ID, domain.ErrInvalidState)
		return domain.SaleResult{Result: failure(err), Sale: &sale}, err
	}
	if sale.PaymentType == target {
		result := domain.Succeeded(fmt.Sprintf("Sale %s is already %s; nothing changed.", sale.ID, target))
		result.NoOp = true
		return domain.SaleResult{Result: result, Sale: &sale}, nil
	}

	customers, err := s.loadCustomers(ctx)
	if err != nil {
		return saleStorageFailure(s.storageFailure("change sale payment type", err))
	}

	var warnings []string
	var customer *domain.Customer
	now := s.timestamp()
	c := findCustomerByName(customers, sale.BuyerName)
	switch target {
	case domain.SalePaymentCredit:
		if c < 0 {
			customers = append(customers, newCustomer(sale.BuyerName, sale.Email, sale.Contact, now))
			c = len(customers) - 1
			s.logger.Info("customer created for credit conversion", zap.String("sale_id", sale.ID), zap.String("customer_id", customers[c].ID))
		}
		customers[c].Balance = balance.ApplyDelta(customers[c].Balance, sale.NetAmount)
		customers[c].UpdatedAt = now
		customer = &customers[c]
	case domain.SalePaymentCash:
		if c < 0 {
			warnings = s.warn(warnings, fmt.Sprintf("no customer named %q; balance left unchanged", sale.BuyerName), zap.String("sale_id", sale.ID))
			break
		}
		customers[c].Balance = balance.ApplyDeltaFloored(customers[c].Balance, sale.NetAmount.Neg())
		customers[c].UpdatedAt = now
		customer = &customers[c]
	}

	sale.PaymentType = target
	sale.UpdatedAt = now
	sales[i] = sale

	st := s.begin()
	stage(st, store.Sales, sales)
	stage(st, store.Customers, customers)
	if err := s.commit(ctx, "change sale payment type", st); err != nil {
		return saleStorageFailure(err)
	}
	s.invalidateBalances(ctx, cache.CustomerBalances)

	result := domain.Succeeded(fmt.Sprintf("Sale %s payment type changed to %s.", sale.ID, target))
	result.Warnings = warnings
	return domain.SaleResult{Result: result, Sale: &sale, Customer: customer}, nil
}

func (s *Service) CancelSale(ctx context.Context, saleID string) (domain.SaleResult, error) {
	return s.moveSale(ctx, saleID, domain.SaleCancelled)
}

// RestoreSale returns a cancelled sale to Completed. Stock is deducted again
// even when that takes a part below zero.
func (s *Service) RestoreSale(ctx context.Context, saleID string) (domain.SaleResult, error) {
	return s.moveSale(ctx, saleID, domain.SaleCompleted)
}

func (s *Service) moveSale(ctx context.Context, saleID string, target domain.SaleStatus) (domain.SaleResult, error) {
	op := "cancel sale"
	if target == domain.SaleCompleted {
		op = "restore sale"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sales, err := s.loadSales(ctx)
	if err != nil {
		return saleStorageFailure(s.storageFailure(op, err))
	}
	i, err := findSale(sales, saleID)
	if err != nil {
		return domain.SaleResult{Result: failure(err)}, err
	}
	sale := sales[i]

	switch {
	case target == domain.SaleCancelled && sale.Status == domain.SaleCancelled:
		err := fmt.Errorf("sale %s is already cancelled: %w", sale.ID, domain.ErrInvalidState)
		return domain.SaleResult{Result: failure(err), Sale: &sale}, err
	case target == domain.SaleCompleted && sale.Status != domain.SaleCancelled:
		err := fmt.Errorf("sale %s is not cancelled; only cancelled sales can be restored: %w", sale.ID, domain.ErrInvalidState)
		return domain.SaleResult{Result: failure(err), Sale: &sale}, err
	}

	parts, err := s.loadParts(ctx)
	if err != nil {
		return saleStorageFailure(s.storageFailure(op, err))
	}
	customers, err := s.loadCustomers(ctx)
	if err != nil {
		return saleStorageFailure(s.storageFailure(op, err))
	}

	ix := s.index(parts)
	var warnings []string
	adjustments := make([]domain.InventoryChange, 0, len(sale.Items))
	for _, line := range sale.Items {
		var change domain.InventoryChange
		if target == domain.SaleCancelled {
			change = ix.Adjust(line.Key(), line.Quantity, inventory.FloorAtZero, saleLineSeed(line))
		} else {
			change = ix.Adjust(line.Key(), -line.Quantity, inventory.AllowNegative, domain.Part{})
		}
		adjustments = append(adjustments, change)
		warnings = s.noteChange(warnings, change, zap.String("sale_id", sale.ID))
	}

	now := s.timestamp()
	var customer *domain.Customer
	if sale.PaymentType == domain.SalePaymentCredit {
		c := findCustomerByName(customers, sale.BuyerName)
		if c < 0 {
			warnings = s.warn(warnings, fmt.Sprintf("no customer named %q; balance left unchanged", sale.BuyerName), zap.String("sale_id", sale.ID))
		} else {
			if target == domain.SaleCancelled {
				customers[c].Balance = balance.ApplyDeltaFloored(customers[c].Balance, sale.NetAmount.Neg())
			} else {
				customers[c].Balance = balance.ApplyDelta(customers[c].Balance, sale.NetAmount)
			}
			customers[c].UpdatedAt = now
			customer = &customers[c]
		}
	}

	sale.Status = target
	sale.UpdatedAt = now
	sales[i] = sale

	st := s.begin()
	stage(st, store.Parts, ix.Parts())
	stage(st, store.Sales, sales)
	if customer != nil {
		stage(st, store.Customers, customers)
	}
	if err := s.commit(ctx, op, st); err != nil {
		return saleStorageFailure(err)
	}
	s.invalidateBalances(ctx, cache.CustomerBalances)

	message := fmt.Sprintf("Sale %s cancelled; stock returned.", sale.ID)
	if target == domain.SaleCompleted {
		message = fmt.Sprintf("Sale %s restored; stock deducted again.", sale.ID)
	}
	result := domain.Succeeded(message)
	result.Warnings = warnings
	return domain.SaleResult{Result: result, Sale: &sale, Customer: customer, Adjustments: adjustments}, nil
}

func (s *Service) GetSale(ctx context.Context, saleID string) (domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sales, err := s.loadSales(ctx)
	if err != nil {
		return domain.Sale{}, s.storageFailure("get sale", err)
	}
	i, err := findSale(sales, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	return sales[i], nil
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sales, err := s.loadSales(ctx)
	if err != nil {
		return nil, s.storageFailure("list sales", err)
	}
	return sales, nil
}

func (s *Service) buildSale(req domain.SaleCreateRequest) (domain.Sale, error) {
	paymentType, err := domain.ParseSalePaymentType(req.PaymentType)
	if err != nil {
		return domain.Sale{}, err
	}
	buyer := strings.TrimSpace(req.BuyerName)
	if buyer == "" {
		return domain.Sale{}, fmt.Errorf("buyer name is required: %w", domain.ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return domain.Sale{}, fmt.Errorf("a sale needs at least one item: %w", domain.ErrInvalidInput)
	}
	if req.Discount.IsNegative() {
		return domain.Sale{}, fmt.Errorf("discount cannot be negative: %w", domain.ErrInvalidInput)
	}

	lines := make([]domain.SaleLine, 0, len(req.Items))
	subtotal := decimal.Zero
	for n, item := range req.Items {
		number := strings.TrimSpace(item.PartNumber)
		if number == "" {
			return domain.Sale{}, fmt.Errorf("item %d: part number is required: %w", n+1, domain.ErrInvalidInput)
		}
		if item.Quantity <= 0 {
			return domain.Sale{}, fmt.Errorf("item %d: quantity must be positive: %w", n+1, domain.ErrInvalidInput)
		}
		if item.UnitPrice.IsNegative() {
			return domain.Sale{}, fmt.Errorf("item %d: unit price cannot be negative: %w", n+1, domain.ErrInvalidInput)
		}
		line := domain.SaleLine{
			PartNumber: number,
			Name:       strings.TrimSpace(item.Name),
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			LineTotal:  domain.LineTotal(item.Quantity, item.UnitPrice),
		}
		subtotal = subtotal.Add(line.LineTotal)
		lines = append(lines, line)
	}
	if req.Discount.GreaterThan(subtotal) {
		return domain.Sale{}, fmt.Errorf("discount %s exceeds subtotal %s: %w", req.Discount, subtotal, domain.ErrInvalidInput)
	}

	now := s.timestamp()
	date := now
	if req.Date != nil && !req.Date.IsZero() {
		date = req.Date.UTC()
	}
	return domain.Sale{
		ID:          xid.New("sal"),
		Date:        date,
		BuyerName:   buyer,
		GST:         strings.TrimSpace(req.GST),
		Contact:     strings.TrimSpace(req.Contact),
		Email:       strings.TrimSpace(req.Email),
		Items:       lines,
		Subtotal:    subtotal,
		Discount:    req.Discount,
		NetAmount:   subtotal.Sub(req.Discount),
		PaymentType: paymentType,
		Status:      domain.SaleCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// upsertCustomer matches the buyer by name. Contact details only overwrite
// when the sale carries a value; credit sales add to the balance.
func (s *Service) upsertCustomer(customers []domain.Customer, req domain.SaleCreateRequest, sale domain.Sale) ([]domain.Customer, domain.Customer) {
	owed := decimal.Zero
	if sale.PaymentType == domain.SalePaymentCredit {
		owed = sale.NetAmount
	}

	i := findCustomerByName(customers, sale.BuyerName)
	if i < 0 {
		customer := newCustomer(sale.BuyerName, sale.Email, sale.Contact, sale.CreatedAt)
		customer.Balance = owed
		customers = append(customers, customer)
		s.logger.Info("customer created", zap.String("customer_id", customer.ID), zap.String("sale_id", sale.ID))
		return customers, customer
	}

	customer := &customers[i]
	if email := strings.TrimSpace(req.Email); email != "" {
		customer.Email = email
	}
	if phone := strings.TrimSpace(req.Contact); phone != "" {
		customer.Phone = phone
	}
	customer.Balance = balance.ApplyDelta(customer.Balance, owed)
	customer.UpdatedAt = sale.CreatedAt
	return customers, *customer
}

func newCustomer(name string, email string, phone string, now time.Time) domain.Customer {
	return domain.Customer{
		ID:        xid.New("cus"),
		Name:      strings.TrimSpace(name),
		Email:     strings.TrimSpace(email),
		Phone:     strings.TrimSpace(phone),
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func saleLineSeed(line domain.SaleLine) domain.Part {
	return domain.Part{Name: line.Name, Price: line.UnitPrice}
}

func findSale(sales []domain.Sale, id string) (int, error) {
	id = strings.TrimSpace(id)
	for i := range sales {
		if strings.EqualFold(sales[i].ID, id) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("sale %s %w", id, domain.ErrNotFound)
}

func findCustomerByName(customers []domain.Customer, name string) int {
	for i := range customers {
		if balance.SameName(customers[i].Name, name) {
			return i
		}
	}
	return -1
}

func saleStorageFailure(err error) (domain.SaleResult, error) {
	return domain.SaleResult{Result: failure(err)}, err
}
