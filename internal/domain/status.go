package domain

import (
	"fmt"
	"strings"
)

type SalePaymentType string

const (
	SalePaymentCash   SalePaymentType = "cash"
	SalePaymentCredit SalePaymentType = "credit"
)

func ParseSalePaymentType(raw string) (SalePaymentType, error) {
	switch SalePaymentType(strings.ToLower(strings.TrimSpace(raw))) {
	case SalePaymentCash:
		return SalePaymentCash, nil
	case SalePaymentCredit:
		return SalePaymentCredit, nil
	}
	return "", fmt.Errorf("sale payment type %q: %w", raw, ErrInvalidInput)
}

type SaleStatus string

const (
	SaleCompleted SaleStatus = "Completed"
	SaleCancelled SaleStatus = "Cancelled"
)

type PurchasePaymentType string

const (
	PurchasePaymentCash         PurchasePaymentType = "cash"
	PurchasePaymentBankTransfer PurchasePaymentType = "bank_transfer"
	PurchasePaymentOnCredit     PurchasePaymentType = "on_credit"
	PurchasePaymentCheque       PurchasePaymentType = "cheque"
)

func ParsePurchasePaymentType(raw string) (PurchasePaymentType, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	switch PurchasePaymentType(normalized) {
	case PurchasePaymentCash, PurchasePaymentBankTransfer, PurchasePaymentOnCredit, PurchasePaymentCheque:
		return PurchasePaymentType(normalized), nil
	}
	return "", fmt.Errorf("purchase payment type %q: %w", raw, ErrInvalidInput)
}

type PurchaseStatus string

const (
	PurchasePending           PurchaseStatus = "Pending"
	PurchaseOrdered           PurchaseStatus = "Ordered"
	PurchasePartiallyReceived PurchaseStatus = "Partially Received"
	PurchaseReceived          PurchaseStatus = "Received"
	PurchaseCancelled         PurchaseStatus = "Cancelled"
)

var PurchaseStatuses = []PurchaseStatus{
	PurchasePending,
	PurchaseOrdered,
	PurchasePartiallyReceived,
	PurchaseReceived,
	PurchaseCancelled,
}

func ParsePurchaseStatus(raw string) (PurchaseStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("_", " ", "-", " ").Replace(normalized)
	for _, status := range PurchaseStatuses {
		if strings.ToLower(string(status)) == normalized {
			return status, nil
		}
	}
	return "", fmt.Errorf("purchase status %q: %w", raw, ErrInvalidInput)
}

// StockEffect is the inventory side effect of a purchase status transition.
type StockEffect int

const (
	StockNone StockEffect = iota
	StockReceive
	StockUnreceive
)

func (e StockEffect) String() string {
	switch e {
	case StockReceive:
		return "receive"
	case StockUnreceive:
		return "unreceive"
	default:
		return "none"
	}
}

var purchaseTransitions = buildPurchaseTransitions()

// Any status may move to any other status; only crossing the Received
// boundary touches stock.
func buildPurchaseTransitions() map[PurchaseStatus]map[PurchaseStatus]StockEffect {
	table := make(map[PurchaseStatus]map[PurchaseStatus]StockEffect, len(PurchaseStatuses))
	for _, from := range PurchaseStatuses {
		table[from] = make(map[PurchaseStatus]StockEffect, len(PurchaseStatuses)-1)
		for _, to := range PurchaseStatuses {
			if from == to {
				continue
			}
			switch {
			case to == PurchaseReceived:
				table[from][to] = StockReceive
			case from == PurchaseReceived:
				table[from][to] = StockUnreceive
			default:
				table[from][to] = StockNone
			}
		}
	}
	return table
}

// PurchaseTransition reports the stock effect of moving from one status to
// another. ok is false for unknown statuses and for from == to.
func PurchaseTransition(from PurchaseStatus, to PurchaseStatus) (effect StockEffect, ok bool) {
	targets, exists := purchaseTransitions[from]
	if !exists {
		return StockNone, false
	}
	effect, ok = targets[to]
	return effect, ok
}

type Settlement string

const (
	SettlementDue  Settlement = "Due"
	SettlementPaid Settlement = "Paid"
)

func ParseSettlement(raw string) (Settlement, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "due", "unpaid":
		return SettlementDue, nil
	case "paid", "settled":
		return SettlementPaid, nil
	}
	return "", fmt.Errorf("settlement %q: %w", raw, ErrInvalidInput)
}

// settlementBalanceSign maps a settlement transition to the sign applied to
// the supplier balance.
var settlementBalanceSign = map[Settlement]map[Settlement]int{
	SettlementDue:  {SettlementPaid: -1},
	SettlementPaid: {SettlementDue: 1},
}

func SettlementTransition(from Settlement, to Settlement) (sign int, ok bool) {
	sign, ok = settlementBalanceSign[from][to]
	return sign, ok
}
