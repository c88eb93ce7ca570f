// Package balance keeps customer amounts-due and supplier amounts-owed.
//
// A party's stored balance is moved incrementally by lifecycle operations.
// The live balance is derived from transactions plus the party's manual
// adjustment, so a hand-set balance survives a recompute.
package balance

import (
	"strings"

	"github.com/shopspring/decimal"

	"partsledger/backend/internal/domain"
)

func ApplyDelta(balance decimal.Decimal, delta decimal.Decimal) decimal.Decimal {
	return balance.Add(delta)
}

// ApplyDeltaFloored is ApplyDelta clamped at zero.
func ApplyDeltaFloored(balance decimal.Decimal, delta decimal.Decimal) decimal.Decimal {
	next := balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero
	}
	return next
}

// Recompute sums amount over every transaction matching predicate.
func Recompute[T any](txs []T, predicate func(T) bool, amount func(T) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if predicate(tx) {
			total = total.Add(amount(tx))
		}
	}
	return total
}

func SameName(a string, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// CustomerOwes selects the non-cancelled credit sales billed to customer.
func CustomerOwes(customer domain.Customer) func(domain.Sale) bool {
	return func(sale domain.Sale) bool {
		return sale.Status != domain.SaleCancelled &&
			sale.PaymentType == domain.SalePaymentCredit &&
			SameName(sale.BuyerName, customer.Name)
	}
}

// SupplierOwed selects the unsettled on-credit purchases from supplier.
// Purchases carrying a supplier id match on id only.
func SupplierOwed(supplier domain.Supplier) func(domain.Purchase) bool {
	return func(purchase domain.Purchase) bool {
		if purchase.PaymentType != domain.PurchasePaymentOnCredit || purchase.PaymentSettled {
			return false
		}
		if purchase.SupplierID != "" {
			return purchase.SupplierID == supplier.ID
		}
		return SameName(purchase.SupplierName, supplier.Name)
	}
}

func SaleAmount(sale domain.Sale) decimal.Decimal {
	return sale.NetAmount
}

func PurchaseAmount(purchase domain.Purchase) decimal.Decimal {
	return purchase.NetAmount
}

// CustomerView never reports a live amount-due below zero, matching the floor
// that cancellations apply to the stored balance.
func CustomerView(customer domain.Customer, sales []domain.Sale) domain.PartyBalance {
	derived := Recompute(sales, CustomerOwes(customer), SaleAmount)
	v := view(customer.ID, customer.Name, customer.Balance, derived, customer.ManualAdjustment)
	if v.Live.IsNegative() {
		v.Live = decimal.Zero
		v.Drift = v.Stored
	}
	return v
}

func SupplierView(supplier domain.Supplier, purchases []domain.Purchase) domain.PartyBalance {
	derived := Recompute(purchases, SupplierOwed(supplier), PurchaseAmount)
	return view(supplier.ID, supplier.Name, supplier.Balance, derived, supplier.ManualAdjustment)
}

// ManualAdjustment returns the adjustment that makes the live balance equal
// target given the transaction-derived amount.
func ManualAdjustment(target decimal.Decimal, derived decimal.Decimal) decimal.Decimal {
	return target.Sub(derived)
}

func view(id string, name string, stored decimal.Decimal, derived decimal.Decimal, manual decimal.Decimal) domain.PartyBalance {
	live := derived.Add(manual)
	return domain.PartyBalance{
		PartyID:          id,
		Name:             name,
		Stored:           stored,
		Derived:          derived,
		ManualAdjustment: manual,
		Live:             live,
		Drift:            stored.Sub(live),
	}
}
