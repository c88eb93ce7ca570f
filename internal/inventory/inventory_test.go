package inventory

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsledger/backend/internal/domain"
)

func price(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func sampleParts() []domain.Part {
	return []domain.Part{
		{Number: "BRK-1", Name: "Brake pad", Price: price("250"), Quantity: 4, Category: "Brakes"},
		{Number: "BRK-1", Name: "Brake pad (premium)", Price: price("400"), Quantity: 1, Category: "Brakes"},
		{Number: "OIL-2", Name: "Oil filter", Price: price("120.5"), Quantity: 0, Category: "Filters"},
	}
}

func TestFindMatchesNumberAndPrice(t *testing.T) {
	ix := NewIndex(sampleParts())

	part, ok := ix.Find(domain.NewPartKey("BRK-1", price("400.00")))
	require.True(t, ok)
	assert.Equal(t, "Brake pad (premium)", part.Name)

	_, ok = ix.Find(domain.NewPartKey("BRK-1", price("300")))
	assert.False(t, ok, "same number at another price is a different entry")
}

func TestFindNormalisesPriceNotation(t *testing.T) {
	ix := NewIndex(sampleParts())

	short, err := domain.ParsePartKey("OIL-2", "₹120.5")
	require.NoError(t, err)
	long, err := domain.ParsePartKey(" OIL-2 ", "120.50")
	require.NoError(t, err)
	assert.Equal(t, short, long)

	_, ok := ix.Find(short)
	assert.True(t, ok)
}

func TestFindOrCreateReturnsExisting(t *testing.T) {
	ix := NewIndex(sampleParts())

	i, part, created := ix.FindOrCreate(domain.NewPartKey("OIL-2", price("120.50")), domain.Part{Name: "ignored"})
	assert.False(t, created)
	assert.Equal(t, 2, i)
	assert.Equal(t, "Oil filter", part.Name)
	assert.Equal(t, 3, ix.Len())
}

func TestFindOrCreateSynthesisesPlaceholder(t *testing.T) {
	ix := NewIndex(nil)

	key := domain.NewPartKey("P100", price("10"))
	i, part, created := ix.FindOrCreate(key, domain.Part{Price: price("10")})
	assert.True(t, created)
	assert.Equal(t, 0, i)
	assert.Equal(t, "P100", part.Name, "name falls back to the part number")
	assert.Equal(t, domain.PlaceholderCategory, part.Category)
	assert.Equal(t, key, part.Key())
}

func TestAdjustIncreaseCreatesMissingPart(t *testing.T) {
	ix := NewIndex(nil)
	key := domain.NewPartKey("P100", price("10"))

	change := ix.Adjust(key, 5, FloorAtZero, domain.Part{Name: "Widget", Price: price("10"), Quantity: 99})
	assert.True(t, change.Created)
	assert.Equal(t, 0, change.Before)
	assert.Equal(t, 5, change.After)

	part, ok := ix.Find(key)
	require.True(t, ok)
	assert.Equal(t, 5, part.Quantity, "seed quantity is ignored")
	assert.Equal(t, "Widget", part.Name)
}

func TestAdjustDecreaseOnMissingPartIsSkipped(t *testing.T) {
	ix := NewIndex(sampleParts())

	change := ix.Adjust(domain.NewPartKey("NOPE", price("1")), -2, FloorAtZero, domain.Part{})
	assert.True(t, change.Skipped)
	assert.Equal(t, 3, ix.Len())

	msg, ok := Warning(change)
	assert.True(t, ok)
	assert.Contains(t, msg, "NOPE @ ₹1.00")
	assert.Contains(t, msg, "skipped")
}

func TestAdjustFloorsAtZero(t *testing.T) {
	ix := NewIndex(sampleParts())
	key := domain.NewPartKey("BRK-1", price("250"))

	change := ix.Adjust(key, -7, FloorAtZero, domain.Part{})
	assert.True(t, change.Clamped)
	assert.Equal(t, 4, change.Before)
	assert.Equal(t, 0, change.After)

	part, _ := ix.Find(key)
	assert.Equal(t, 0, part.Quantity)
	_, ok := Warning(change)
	assert.True(t, ok)
}

func TestAdjustAllowNegativeGoesBelowZero(t *testing.T) {
	ix := NewIndex(sampleParts())
	key := domain.NewPartKey("BRK-1", price("400"))

	change := ix.Adjust(key, -3, AllowNegative, domain.Part{})
	assert.False(t, change.Clamped)
	assert.Equal(t, -2, change.After)

	msg, ok := Warning(change)
	assert.True(t, ok)
	assert.Contains(t, msg, "negative (-2)")
}

func TestAdjustCleanChangeHasNoWarning(t *testing.T) {
	ix := NewIndex(sampleParts())

	change := ix.Adjust(domain.NewPartKey("BRK-1", price("250")), -1, FloorAtZero, domain.Part{})
	assert.Equal(t, 3, change.After)
	_, ok := Warning(change)
	assert.False(t, ok)
}

func TestDuplicateKeysFirstEntryWins(t *testing.T) {
	parts := sampleParts()
	parts = append(parts, domain.Part{Number: "BRK-1", Name: "Shadow", Price: price("250"), Quantity: 50})
	ix := NewIndex(parts)

	part, ok := ix.Find(domain.NewPartKey("BRK-1", price("250")))
	require.True(t, ok)
	assert.Equal(t, "Brake pad", part.Name)
	assert.Len(t, ix.Duplicates(), 1)
	assert.Len(t, ix.Parts(), 4, "duplicates are kept in storage")
}

func TestUpsertMergesQuantityAndMissingFields(t *testing.T) {
	ix := NewIndex([]domain.Part{
		{Number: "P100", Name: "Widget", Price: price("10"), Quantity: 3, Category: domain.PlaceholderCategory},
	})

	created := ix.Upsert(domain.Part{Number: "P100", Name: "Other", Price: price("10.00"), Quantity: 2, Category: "Hardware", Shelf: "A1"})
	assert.False(t, created)

	part, _ := ix.Find(domain.NewPartKey("P100", price("10")))
	assert.Equal(t, 5, part.Quantity)
	assert.Equal(t, "Widget", part.Name)
	assert.Equal(t, "Hardware", part.Category)
	assert.Equal(t, "A1", part.Shelf)

	created = ix.Upsert(domain.Part{Number: "P200", Name: "Bolt", Price: price("2"), Quantity: 10})
	assert.True(t, created)
	assert.Equal(t, 2, ix.Len())
}

func TestRemoveDropsEntryAndReindexes(t *testing.T) {
	ix := NewIndex(sampleParts())

	assert.True(t, ix.Remove(domain.NewPartKey("BRK-1", price("250"))))
	assert.False(t, ix.Remove(domain.NewPartKey("BRK-1", price("250"))))

	part, ok := ix.Find(domain.NewPartKey("OIL-2", price("120.5")))
	require.True(t, ok)
	assert.Equal(t, "Oil filter", part.Name)
	assert.Equal(t, 2, ix.Len())
}
