package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SaleLineInput struct {
	PartNumber string          `json:"part_number"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

type SaleCreateRequest struct {
	Date        *time.Time      `json:"date,omitempty"`
	BuyerName   string          `json:"buyer_name"`
	GST         string          `json:"gst,omitempty"`
	Contact     string          `json:"contact,omitempty"`
	Email       string          `json:"email,omitempty"`
	Items       []SaleLineInput `json:"items"`
	Discount    decimal.Decimal `json:"discount"`
	PaymentType string          `json:"payment_type"`
}

type SalePaymentTypeRequest struct {
	PaymentType string `json:"payment_type"`
}

type PurchaseLineInput struct {
	PartNumber string          `json:"part_number"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
}

type PurchaseCreateRequest struct {
	Date          *time.Time          `json:"date,omitempty"`
	SupplierID    string              `json:"supplier_id,omitempty"`
	SupplierName  string              `json:"supplier_name"`
	ContactPerson string              `json:"contact_person,omitempty"`
	SupplierEmail string              `json:"supplier_email,omitempty"`
	SupplierPhone string              `json:"supplier_phone,omitempty"`
	InvoiceNumber string              `json:"invoice_number,omitempty"`
	Items         []PurchaseLineInput `json:"items"`
	ShippingCosts decimal.Decimal     `json:"shipping_costs"`
	OtherCharges  decimal.Decimal     `json:"other_charges"`
	PaymentType   string              `json:"payment_type"`
	Status        string              `json:"status"`
}

type PurchaseStatusRequest struct {
	Status string `json:"status"`
}

type PurchaseSettlementRequest struct {
	Settlement string `json:"settlement"`
}

type BalanceOverrideRequest struct {
	Balance decimal.Decimal `json:"balance"`
}

type PartCreateRequest struct {
	Name          string `json:"name"`
	AlternateName string `json:"alternate_name,omitempty"`
	Number        string `json:"number"`
	Company       string `json:"company,omitempty"`
	Quantity      int    `json:"quantity"`
	Category      string `json:"category,omitempty"`
	Price         string `json:"price"`
	Shelf         string `json:"shelf,omitempty"`
}

// ImportRow is one line of a bulk part import, already split into columns.
type ImportRow struct {
	Line          int
	Name          string
	AlternateName string
	Number        string
	Company       string
	Quantity      int
	Category      string
	Price         decimal.Decimal
	Shelf         string
}

type Result struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	NoOp     bool     `json:"no_op,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func Succeeded(message string) Result {
	return Result{Success: true, Message: message}
}

func Failed(message string) Result {
	return Result{Success: false, Message: message}
}

type SaleResult struct {
	Result
	Sale        *Sale             `json:"sale,omitempty"`
	Customer    *Customer         `json:"customer,omitempty"`
	Adjustments []InventoryChange `json:"adjustments,omitempty"`
}

type PurchaseResult struct {
	Result
	Purchase          *Purchase         `json:"purchase,omitempty"`
	Supplier          *Supplier         `json:"supplier,omitempty"`
	InventoryAdjusted bool              `json:"inventory_adjusted"`
	Adjustments       []InventoryChange `json:"adjustments,omitempty"`
}

type ImportResult struct {
	Result
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Problems []string `json:"problems,omitempty"`
}

type BalanceResult struct {
	Result
	Balance PartyBalance `json:"balance"`
}

type ReconcileResult struct {
	Result
	Customers []PartyBalance `json:"customers"`
	Suppliers []PartyBalance `json:"suppliers"`
}
