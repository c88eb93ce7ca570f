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

func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseCreateRequest) (domain.PurchaseResult, error) {
	purchase, err := buildPurchase(req)
	if err != nil {
		return domain.PurchaseResult{Result: failure(err)}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	purchases, err := s.loadPurchases(ctx)
	if err != nil {
		return purchaseStorageFailure(s.storageFailure("create purchase", err))
	}
	suppliers, err := s.loadSuppliers(ctx)
	if err != nil {
		return purchaseStorageFailure(s.storageFailure("create purchase", err))
	}
	parts, err := s.loadParts(ctx)
	if err != nil {
		return purchaseStorageFailure(s.storageFailure("create purchase", err))
	}

	now := s.timestamp()
	suppliers, sup, err := s.upsertSupplier(suppliers, req, now)
	if err != nil {
		return domain.PurchaseResult{Result: failure(err)}, err
	}

	purchase.SupplierID = suppliers[sup].ID
	purchase.SupplierName = suppliers[sup].Name
	if purchase.Date.IsZero() {
		purchase.Date = now
	}
	purchase.CreatedAt = now
	purchase.UpdatedAt = now

	if purchase.PaymentType == domain.PurchasePaymentOnCredit && !purchase.PaymentSettled {
		suppliers[sup].Balance = balance.ApplyDelta(suppliers[sup].Balance, purchase.NetAmount)
		suppliers[sup].UpdatedAt = now
	}

	var warnings []string
	var adjustments []domain.InventoryChange
	ix := s.index(parts)
	if purchase.Status == domain.PurchaseReceived {
		adjustments, warnings = s.applyStockEffect(ix, purchase, domain.StockReceive)
	}

	// Numbered only once nothing but the commit can fail.
	id, err := s.ids.NextPurchaseOrderID(ctx)
	if err != nil {
		return purchaseStorageFailure(s.storageFailure("create purchase", err))
	}
	purchase.ID = id
	purchases = append(purchases, purchase)

	st := s.begin()
	stage(st, store.Purchases, purchases)
	stage(st, store.Suppliers, suppliers)
	if len(adjustments) > 0 {
		stage(st, store.Parts, ix.Parts())
	}
	if err := s.commit(ctx, "create purchase", st); err != nil {
		return purchaseStorageFailure(err)
	}
	s.invalidateBalances(ctx, cache.SupplierBalances)

	supplier := suppliers[sup]
	result := domain.Succeeded(fmt.Sprintf("Purchase %s recorded for %s.", purchase.ID, purchase.SupplierName))
	result.Warnings = warnings
	return domain.PurchaseResult{
		Result:            result,
		Purchase:          &purchase,
		Supplier:          &supplier,
		InventoryAdjusted: len(adjustments) > 0,
		Adjustments:       adjustments,
	}, nil
}

// ChangePurchaseStatus moves an order to any other status. Stock moves only
// when the order enters or leaves Received.
func (s *Service) ChangePurchaseStatus(ctx context.Context, purchaseID string, req domain.PurchaseStatusRequest) (domain.PurchaseResult, error) {
	target, err := domain.ParsePurchaseStatus(req.Status)
	if err != nil {
		return domain.PurchaseResult{Result: failure(err)}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	purchases, err := s.loadPurchases(ctx)
	if err != nil {
		return purchaseStorageFailure(s.storageFailure("change purchase status", err))
	}
	i, err := findPurchase(purchases, purchaseID)
	if err != nil {
		return domain.PurchaseResult{Result: failure(err)}, err
	}
	purchase := purchases[i]

	if purchase.Status == target {
		result := domain.Succeeded(fmt.Sprintf("Purchase %s is already %s; no inventory impact.", purchase.ID, target))
		result.NoOp = true
		return domain.PurchaseResult{Result: result, Purchase: &purchase}, nil
	}
	effect, ok := domain.PurchaseTransition(purchase.Status, target)
	if !ok {
		err := fmt.Errorf("purchase %s has unknown status %q: %w", purchase.ID, purchase.Status, domain.ErrInvalidState)
		return domain.PurchaseResult{Result: failure(err), Purchase: &purchase}, err
	}

	from := purchase.Status
	purchase.Status = target
	purchase.UpdatedAt = s.timestamp()
	purchases[i] = purchase

	st := s.begin()
	stage(st, store.Purchases, purchases)

	var warnings []string
	var adjustments []domain.InventoryChange
	if effect != domain.StockNone {
		parts, err := s.loadParts(ctx)
		if err != nil {
			return purchaseStorageFailure(s.storageFailure("change purchase status", err))
		}
		ix := s.index(parts)
		adjustments, warnings = s.applyStockEffect(ix, purchase, effect)
		stage(st, store.Parts, ix.Parts())
	}
	if err := s.commit(ctx, "change purchase status", st); err != nil {
		return purchaseStorageFailure(err)
	}

	s.logger.Info("purchase status changed",
		zap.String("purchase_id", purchase.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.Stringer("stock_effect", effect),
	)

	var message string
	switch effect {
	case domain.StockReceive:
		message = fmt.Sprintf("Purchase %s marked %s; stock received.", purchase.ID, target)
	case domain.StockUnreceive:
		message = fmt.Sprintf("Purchase %s marked %s; received stock reversed.", purchase.ID, target)
	default:
		message = fmt.Sprintf("Purchase %s marked %s; no inventory impact.", purchase.ID, target)
	}
	result := domain.Succeeded(message)
	result.Warnings = warnings
	return domain.PurchaseResult{
		Result:            result,
		Purchase:          &purchase,
		InventoryAdjusted: effect != domain.StockNone,
		Adjustments:       adjustments,
	}, nil
}

// ChangePurchaseSettlement marks an on-credit order paid or due and moves
// the supplier balance by its net amount.
func (s *Service) ChangePurchaseSettlement(ctx context.Context, purchaseID string, req domain.PurchaseSettlementRequest) (domain.PurchaseResult, error) {
	target, err := domain.ParseSettlement(req.Settlement)
	if err != nil {
		return domain.PurchaseResult{Result: failure(err)}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	purchases, err := s.loadPurchases(ctx)
	if err != nil {
		return purchaseStorageFailure(s.storageFailure("change purchase settlement", err))
	}
	i, err := findPurchase(purchases, purchaseID)
	if err != nil {
		return domain.PurchaseResult{Result: failure(err)}, err
	}
	purchase := purchases[i]

	if purchase.PaymentType != domain.PurchasePaymentOnCredit {
		err := fmt.Errorf("purchase %s is paid by %s; settlement applies to on_credit only: %w", purchase.ID, purchase.PaymentType, domain.ErrNotApplicable)
		return domain.PurchaseResult{Result: failure(err), Purchase: &purchase}, err
	}
	from := purchase.Settlement()
	sign, ok := domain.SettlementTransition(from, target)
	if !ok {
		result := domain.Succeeded(fmt.Sprintf("Purchase %s is already %s; balance unchanged.", purchase.ID, target))
		result.NoOp = true
		return domain.PurchaseResult{Result: result, Purchase: &purchase}, nil
	}

	suppliers, err := s.loadSuppliers(ctx)
	if err != nil {
		return purchaseStorageFailure(s.storageFailure("change purchase settlement", err))
	}

	now := s.timestamp()
	var warnings []string
	var supplier *domain.Supplier
	if sup := findSupplier(suppliers, purchase.SupplierID, purchase.SupplierName); sup < 0 {
		warnings = s.warn(warnings, fmt.Sprintf("no supplier matches %q; balance left unchanged", purchase.SupplierName), zap.String("purchase_id", purchase.ID))
	} else {
		delta := purchase.NetAmount.Mul(decimal.NewFromInt(int64(sign)))
		suppliers[sup].Balance = balance.ApplyDelta(suppliers[sup].Balance, delta)
		suppliers[sup].UpdatedAt = now
		supplier = &suppliers[sup]
	}

	purchase.PaymentSettled = target == domain.SettlementPaid
	purchase.UpdatedAt = now
	purchases[i] = purchase

	st := s.begin()
	stage(st, store.Purchases, purchases)
	if supplier != nil {
		stage(st, store.Suppliers, suppliers)
	}
	if err := s.commit(ctx, "change purchase settlement", st); err != nil {
		return purchaseStorageFailure(err)
	}
	s.invalidateBalances(ctx, cache.SupplierBalances)

	result := domain.Succeeded(fmt.Sprintf("Purchase %s marked %s.", purchase.ID, target))
	result.Warnings = warnings
	return domain.PurchaseResult{Result: result, Purchase: &purchase, Supplier: supplier}, nil
}

func (s *Service) GetPurchase(ctx context.Context, purchaseID string) (domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purchases, err := s.loadPurchases(ctx)
	if err != nil {
		return domain.Purchase{}, s.storageFailure("get purchase", err)
	}
	i, err := findPurchase(purchases, purchaseID)
	if err != nil {
		return domain.Purchase{}, err
	}
	return purchases[i], nil
}

// ListPurchases returns every purchase, or only those in status when given.
func (s *Service) ListPurchases(ctx context.Context, status string) ([]domain.Purchase, error) {
	var filter domain.PurchaseStatus
	if strings.TrimSpace(status) != "" {
		parsed, err := domain.ParsePurchaseStatus(status)
		if err != nil {
			return nil, err
		}
		filter = parsed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	purchases, err := s.loadPurchases(ctx)
	if err != nil {
		return nil, s.storageFailure("list purchases", err)
	}
	if filter == "" {
		return purchases, nil
	}
	filtered := make([]domain.Purchase, 0, len(purchases))
	for _, purchase := range purchases {
		if purchase.Status == filter {
			filtered = append(filtered, purchase)
		}
	}
	return filtered, nil
}

// applyStockEffect receives or reverses every line of purchase against ix.
func (s *Service) applyStockEffect(ix *inventory.Index, purchase domain.Purchase, effect domain.StockEffect) ([]domain.InventoryChange, []string) {
	var warnings []string
	adjustments := make([]domain.InventoryChange, 0, len(purchase.Items))
	for _, line := range purchase.Items {
		var change domain.InventoryChange
		switch effect {
		case domain.StockReceive:
			seed := domain.Part{Name: line.Name, Price: line.DerivedPrice()}
			change = ix.Adjust(line.Key(), line.Quantity, inventory.FloorAtZero, seed)
		case domain.StockUnreceive:
			change = ix.Adjust(line.Key(), -line.Quantity, inventory.FloorAtZero, domain.Part{})
		default:
			continue
		}
		adjustments = append(adjustments, change)
		warnings = s.noteChange(warnings, change, purchaseFields(purchase)...)
	}
	return adjustments, warnings
}

func purchaseFields(purchase domain.Purchase) []zap.Field {
	fields := []zap.Field{zap.String("supplier", purchase.SupplierName)}
	if purchase.ID != "" {
		fields = append(fields, zap.String("purchase_id", purchase.ID))
	}
	return fields
}

// upsertSupplier matches by id first, then by name, and creates a supplier
// for an unseen name. Non-empty contact fields overwrite stored ones.
func (s *Service) upsertSupplier(suppliers []domain.Supplier, req domain.PurchaseCreateRequest, now time.Time) ([]domain.Supplier, int, error) {
	id := strings.TrimSpace(req.SupplierID)
	name := strings.TrimSpace(req.SupplierName)

	i := findSupplier(suppliers, id, name)
	if i < 0 && name == "" {
		return suppliers, -1, fmt.Errorf("supplier %s %w", id, domain.ErrNotFound)
	}
	if i < 0 {
		supplier := domain.Supplier{
			ID:            xid.New("sup"),
			Name:          name,
			ContactPerson: strings.TrimSpace(req.ContactPerson),
			Email:         strings.TrimSpace(req.SupplierEmail),
			Phone:         strings.TrimSpace(req.SupplierPhone),
			Balance:       decimal.Zero,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		s.logger.Info("supplier created", zap.String("supplier_id", supplier.ID), zap.String("name", supplier.Name))
		return append(suppliers, supplier), len(suppliers), nil
	}

	supplier := &suppliers[i]
	if v := strings.TrimSpace(req.ContactPerson); v != "" {
		supplier.ContactPerson = v
	}
	if v := strings.TrimSpace(req.SupplierEmail); v != "" {
		supplier.Email = v
	}
	if v := strings.TrimSpace(req.SupplierPhone); v != "" {
		supplier.Phone = v
	}
	supplier.UpdatedAt = now
	return suppliers, i, nil
}

func buildPurchase(req domain.PurchaseCreateRequest) (domain.Purchase, error) {
	paymentType, err := domain.ParsePurchasePaymentType(req.PaymentType)
	if err != nil {
		return domain.Purchase{}, err
	}
	status := domain.PurchasePending
	if strings.TrimSpace(req.Status) != "" {
		status, err = domain.ParsePurchaseStatus(req.Status)
		if err != nil {
			return domain.Purchase{}, err
		}
	}
	if strings.TrimSpace(req.SupplierID) == "" && strings.TrimSpace(req.SupplierName) == "" {
		return domain.Purchase{}, fmt.Errorf("supplier id or name is required: %w", domain.ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return domain.Purchase{}, fmt.Errorf("a purchase needs at least one item: %w", domain.ErrInvalidInput)
	}
	if req.ShippingCosts.IsNegative() || req.OtherCharges.IsNegative() {
		return domain.Purchase{}, fmt.Errorf("charges cannot be negative: %w", domain.ErrInvalidInput)
	}

	lines := make([]domain.PurchaseLine, 0, len(req.Items))
	subtotal := decimal.Zero
	for n, item := range req.Items {
		number := strings.TrimSpace(item.PartNumber)
		if number == "" {
			return domain.Purchase{}, fmt.Errorf("item %d: part number is required: %w", n+1, domain.ErrInvalidInput)
		}
		if item.Quantity <= 0 {
			return domain.Purchase{}, fmt.Errorf("item %d: quantity must be positive: %w", n+1, domain.ErrInvalidInput)
		}
		if item.UnitCost.IsNegative() {
			return domain.Purchase{}, fmt.Errorf("item %d: unit cost cannot be negative: %w", n+1, domain.ErrInvalidInput)
		}
		line := domain.PurchaseLine{
			PartNumber: number,
			Name:       strings.TrimSpace(item.Name),
			Quantity:   item.Quantity,
			UnitCost:   item.UnitCost,
			LineTotal:  domain.LineTotal(item.Quantity, item.UnitCost),
		}
		subtotal = subtotal.Add(line.LineTotal)
		lines = append(lines, line)
	}

	purchase := domain.Purchase{
		SupplierName:   strings.TrimSpace(req.SupplierName),
		InvoiceNumber:  strings.TrimSpace(req.InvoiceNumber),
		Items:          lines,
		Subtotal:       subtotal,
		ShippingCosts:  req.ShippingCosts,
		OtherCharges:   req.OtherCharges,
		NetAmount:      subtotal.Add(req.ShippingCosts).Add(req.OtherCharges),
		PaymentType:    paymentType,
		Status:         status,
		PaymentSettled: paymentType != domain.PurchasePaymentOnCredit,
	}
	if req.Date != nil {
		purchase.Date = req.Date.UTC()
	}
	return purchase, nil
}

func findPurchase(purchases []domain.Purchase, id string) (int, error) {
	id = strings.TrimSpace(id)
	for i := range purchases {
		if strings.EqualFold(purchases[i].ID, id) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("purchase %s %w", id, domain.ErrNotFound)
}

func findSupplier(suppliers []domain.Supplier, id string, name string) int {
	if id != "" {
		for i := range suppliers {
			if suppliers[i].ID == id {
				return i
			}
		}
	}
	if strings.TrimSpace(name) == "" {
		return -1
	}
	for i := range suppliers {
		if balance.SameName(suppliers[i].Name, name) {
			return i
		}
	}
	return -1
}

func purchaseStorageFailure(err error) (domain.PurchaseResult, error) {
	return domain.PurchaseResult{Result: failure(err)}, err
}
