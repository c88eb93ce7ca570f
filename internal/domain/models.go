package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlaceholderCategory is assigned to parts synthesised from a transaction line.
const PlaceholderCategory = "Uncategorized"

type Part struct {
	Number        string          `json:"number"`
	Name          string          `json:"name"`
	AlternateName string          `json:"alternate_name,omitempty"`
	Manufacturer  string          `json:"manufacturer,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	Category      string          `json:"category"`
	Shelf         string          `json:"shelf,omitempty"`
}

func (p Part) Key() PartKey {
	return NewPartKey(p.Number, p.Price)
}

type SaleLine struct {
	PartNumber string          `json:"part_number"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

func (l SaleLine) Key() PartKey {
	return NewPartKey(l.PartNumber, l.UnitPrice)
}

type Sale struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	BuyerName   string          `json:"buyer_name"`
	GST         string          `json:"gst,omitempty"`
	Contact     string          `json:"contact,omitempty"`
	Email       string          `json:"email,omitempty"`
	Items       []SaleLine      `json:"items"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	PaymentType SalePaymentType `json:"payment_type"`
	Status      SaleStatus      `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type PurchaseLine struct {
	PartNumber string          `json:"part_number"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

// DerivedPrice is the stock price a received line is booked at. Lines
// imported without a unit cost fall back to line total / quantity.
func (l PurchaseLine) DerivedPrice() decimal.Decimal {
	if !l.UnitCost.IsZero() || l.Quantity == 0 {
		return l.UnitCost
	}
	return l.LineTotal.Div(decimal.NewFromInt(int64(l.Quantity))).Round(2)
}

func (l PurchaseLine) Key() PartKey {
	return NewPartKey(l.PartNumber, l.DerivedPrice())
}

type Purchase struct {
	ID             string              `json:"id"`
	Date           time.Time           `json:"date"`
	SupplierID     string              `json:"supplier_id"`
	SupplierName   string              `json:"supplier_name"`
	InvoiceNumber  string              `json:"invoice_number,omitempty"`
	Items          []PurchaseLine      `json:"items"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	ShippingCosts  decimal.Decimal     `json:"shipping_costs"`
	OtherCharges   decimal.Decimal     `json:"other_charges"`
	NetAmount      decimal.Decimal     `json:"net_amount"`
	PaymentType    PurchasePaymentType `json:"payment_type"`
	Status         PurchaseStatus      `json:"status"`
	PaymentSettled bool                `json:"payment_settled"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (p Purchase) Settlement() Settlement {
	if p.PaymentSettled {
		return SettlementPaid
	}
	return SettlementDue
}

type Customer struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Email            string          `json:"email,omitempty"`
	Phone            string          `json:"phone,omitempty"`
	Balance          decimal.Decimal `json:"balance"`
	ManualAdjustment decimal.Decimal `json:"manual_adjustment"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type Supplier struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	ContactPerson    string          `json:"contact_person,omitempty"`
	Email            string          `json:"email,omitempty"`
	Phone            string          `json:"phone,omitempty"`
	Balance          decimal.Decimal `json:"balance"`
	ManualAdjustment decimal.Decimal `json:"manual_adjustment"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// InventoryChange describes what one stock adjustment did to one part.
type InventoryChange struct {
	PartNumber string `json:"part_number"`
	Price      string `json:"price"`
	Delta      int    `json:"delta"`
	Before     int    `json:"before"`
	After      int    `json:"after"`
	Created    bool   `json:"created,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	Clamped    bool   `json:"clamped,omitempty"`
}

// PartyBalance compares the stored balance of a customer or supplier with
// the balance derived from its transactions.
type PartyBalance struct {
	PartyID          string          `json:"party_id"`
	Name             string          `json:"name"`
	Stored           decimal.Decimal `json:"stored"`
	Derived          decimal.Decimal `json:"derived"`
	ManualAdjustment decimal.Decimal `json:"manual_adjustment"`
	Live             decimal.Decimal `json:"live"`
	Drift            decimal.Decimal `json:"drift"`
}

func (b PartyBalance) InSync() bool {
	return b.Drift.IsZero()
}
