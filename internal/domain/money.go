package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const CurrencySymbol = "₹"

// PartKey is the natural key of a stock entry. Two parts with the same
// number at different prices are separate entries.
type PartKey struct {
	Number string
	Price  string
}

func NewPartKey(number string, price decimal.Decimal) PartKey {
	return PartKey{Number: strings.TrimSpace(number), Price: FormatPrice(price)}
}

// ParsePartKey builds a key from a number and a price in any accepted
// notation ("₹10", "10.00", "1,250.5").
func ParsePartKey(number string, price string) (PartKey, error) {
	amount, err := ParsePrice(price)
	if err != nil {
		return PartKey{}, err
	}
	return NewPartKey(number, amount), nil
}

func (k PartKey) String() string {
	return k.Number + "@" + k.Price
}

func FormatPrice(price decimal.Decimal) string {
	return CurrencySymbol + price.StringFixed(2)
}

func ParsePrice(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, CurrencySymbol)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty price: %w", ErrInvalidInput)
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %q: %w", raw, ErrInvalidInput)
	}
	return amount, nil
}

// LineTotal is quantity * unit price rounded to paise.
func LineTotal(qty int, unit decimal.Decimal) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}
