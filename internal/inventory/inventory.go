// Package inventory resolves transaction lines to stock entries and moves
// their quantities. Entries are keyed by (part number, formatted price).
package inventory

import (
	"fmt"
	"strings"

	"partsledger/backend/internal/domain"
)

// Policy decides what happens when a decrease would take stock below zero.
type Policy int

const (
	// FloorAtZero clamps the result at 0. Used for sale fulfilment and for
	// reversing a received purchase.
	FloorAtZero Policy = iota
	// AllowNegative keeps the arithmetic result. Used when a cancelled sale
	// is restored after its stock was sold elsewhere.
	AllowNegative
)

type Index struct {
	parts      []domain.Part
	byKey      map[domain.PartKey]int
	duplicates []domain.PartKey
}

func NewIndex(parts []domain.Part) *Index {
	ix := &Index{
		parts: make([]domain.Part, 0, len(parts)),
		byKey: make(map[domain.PartKey]int, len(parts)),
	}
	for _, part := range parts {
		key := part.Key()
		if _, exists := ix.byKey[key]; exists {
			// Legacy data may hold the same key twice; the first entry wins.
			ix.duplicates = append(ix.duplicates, key)
			ix.parts = append(ix.parts, part)
			continue
		}
		ix.byKey[key] = len(ix.parts)
		ix.parts = append(ix.parts, part)
	}
	return ix
}

// Duplicates lists keys that appeared more than once in the loaded parts.
func (ix *Index) Duplicates() []domain.PartKey {
	return append([]domain.PartKey(nil), ix.duplicates...)
}

func (ix *Index) Len() int {
	return len(ix.parts)
}

func (ix *Index) Find(key domain.PartKey) (domain.Part, bool) {
	i, ok := ix.byKey[key]
	if !ok {
		return domain.Part{}, false
	}
	return ix.parts[i], true
}

// FindOrCreate returns the position and value of the entry for key,
// appending one built from seed when none exists.
func (ix *Index) FindOrCreate(key domain.PartKey, seed domain.Part) (int, domain.Part, bool) {
	if i, ok := ix.byKey[key]; ok {
		return i, ix.parts[i], false
	}

	part := seed
	part.Number = key.Number
	if domain.FormatPrice(part.Price) != key.Price {
		if amount, err := domain.ParsePrice(key.Price); err == nil {
			part.Price = amount
		}
	}
	if strings.TrimSpace(part.Name) == "" {
		part.Name = key.Number
	}
	if strings.TrimSpace(part.Category) == "" {
		part.Category = domain.PlaceholderCategory
	}
	ix.byKey[key] = len(ix.parts)
	ix.parts = append(ix.parts, part)
	return len(ix.parts) - 1, part, true
}

// Adjust moves the quantity of the entry for key by delta. Increases on a
// missing entry create it from seed; decreases on a missing entry are
// skipped and reported through the returned change.
func (ix *Index) Adjust(key domain.PartKey, delta int, policy Policy, seed domain.Part) domain.InventoryChange {
	change := domain.InventoryChange{PartNumber: key.Number, Price: key.Price, Delta: delta}

	i, exists := ix.byKey[key]
	if !exists {
		if delta <= 0 {
			change.Skipped = delta < 0
			return change
		}
		seed.Quantity = 0
		i, _, _ = ix.FindOrCreate(key, seed)
		change.Created = true
	}

	before := ix.parts[i].Quantity
	after := before + delta
	if after < 0 && delta < 0 && policy == FloorAtZero {
		after = 0
		change.Clamped = true
	}
	ix.parts[i].Quantity = after

	change.Before = before
	change.After = after
	return change
}

// Upsert merges an imported part: an existing entry gains the incoming
// quantity and any descriptive fields it was missing.
func (ix *Index) Upsert(part domain.Part) (created bool) {
	key := part.Key()
	i, exists := ix.byKey[key]
	if !exists {
		part.Number = key.Number
		if strings.TrimSpace(part.Category) == "" {
			part.Category = domain.PlaceholderCategory
		}
		ix.byKey[key] = len(ix.parts)
		ix.parts = append(ix.parts, part)
		return true
	}

	existing := &ix.parts[i]
	existing.Quantity += part.Quantity
	fillEmpty(&existing.Name, part.Name)
	fillEmpty(&existing.AlternateName, part.AlternateName)
	fillEmpty(&existing.Manufacturer, part.Manufacturer)
	fillEmpty(&existing.Shelf, part.Shelf)
	if existing.Category == domain.PlaceholderCategory && strings.TrimSpace(part.Category) != "" {
		existing.Category = part.Category
	}
	fillEmpty(&existing.Category, part.Category)
	return false
}

func (ix *Index) Remove(key domain.PartKey) bool {
	i, ok := ix.byKey[key]
	if !ok {
		return false
	}
	ix.parts = append(ix.parts[:i], ix.parts[i+1:]...)
	ix.reindex()
	return true
}

// Parts returns a copy of the entries in their stored order.
func (ix *Index) Parts() []domain.Part {
	return append([]domain.Part(nil), ix.parts...)
}

func (ix *Index) reindex() {
	ix.byKey = make(map[domain.PartKey]int, len(ix.parts))
	ix.duplicates = nil
	for i, part := range ix.parts {
		key := part.Key()
		if _, exists := ix.byKey[key]; exists {
			ix.duplicates = append(ix.duplicates, key)
			continue
		}
		ix.byKey[key] = i
	}
}

// Warning describes a change that left stock inconsistent with the
// transaction that caused it. ok is false for clean changes.
func Warning(change domain.InventoryChange) (message string, ok bool) {
	label := change.PartNumber + " @ " + change.Price
	switch {
	case change.Skipped:
		return fmt.Sprintf("part %s not found; decrease of %d skipped", label, -change.Delta), true
	case change.Clamped:
		return fmt.Sprintf("part %s had %d in stock; decrease of %d clamped at 0", label, change.Before, -change.Delta), true
	case change.After < 0:
		return fmt.Sprintf("part %s quantity is now negative (%d)", label, change.After), true
	}
	return "", false
}

func fillEmpty(dst *string, value string) {
	if strings.TrimSpace(*dst) == "" && strings.TrimSpace(value) != "" {
		*dst = value
	}
}
