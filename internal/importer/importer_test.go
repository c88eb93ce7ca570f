package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"partsledger/backend/internal/domain"
)

const sheet = `Name,Alternate Name,Number,Company,Quantity,Category,Price,Shelf
Brake pad,Pad set,BRK-1,Bosch,4,Brakes,₹250.00,A1
Oil filter,,OIL-2,Mann,10,Filters,"1,120.5",
Too short,,X-1,Acme,1
Bad qty,,X-2,Acme,lots,Misc,10,B2
,,X-3,Acme,1,Misc,10,B3
No number,,,Acme,1,Misc,10,B4
Bad price,,X-5,Acme,1,Misc,free,B5

`

func TestParseCSVSkipsHeaderAndCountsMalformedRows(t *testing.T) {
	batch, err := ParseCSV(strings.NewReader(sheet))
	require.NoError(t, err)

	require.Len(t, batch.Rows, 2)
	assert.Equal(t, 5, batch.Skipped)
	assert.Len(t, batch.Problems, 5)

	first := batch.Rows[0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, "Brake pad", first.Name)
	assert.Equal(t, "Pad set", first.AlternateName)
	assert.Equal(t, "BRK-1", first.Number)
	assert.Equal(t, "Bosch", first.Company)
	assert.Equal(t, 4, first.Quantity)
	assert.Equal(t, "Brakes", first.Category)
	assert.Equal(t, "250", first.Price.String())
	assert.Equal(t, "A1", first.Shelf)

	second := batch.Rows[1]
	assert.Equal(t, "1120.5", second.Price.String())
	assert.Empty(t, second.Shelf)

	assert.Contains(t, batch.Problems[0], "line 4: expected 8 columns, got 5")
	assert.Contains(t, batch.Problems[1], "line 5")
	assert.Contains(t, batch.Problems[2], "name is required")
	assert.Contains(t, batch.Problems[3], "part number is required")
	assert.Contains(t, batch.Problems[4], "line 8")
}

func TestParseCSVWithoutHeader(t *testing.T) {
	batch, err := ParseCSV(strings.NewReader("Spark plug,,SPK-4,NGK,12,Ignition,95,C3\n"))
	require.NoError(t, err)
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, 1, batch.Rows[0].Line)
	assert.Zero(t, batch.Skipped)
}

func TestParseCSVSkipsUnparseableRow(t *testing.T) {
	input := "Name,Alternate Name,Number,Company,Quantity,Category,Price,Shelf\n" +
		"Brake pad,,BRK-1,Bosch,4,Brakes,250,A1\n" +
		"Bad\"row,,X-9,Acme,1,Misc,10,B1\n" +
		"Oil filter,,OIL-2,Mann,10,Filters,120,A2\n"

	batch, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, batch.Rows, 2)
	assert.Equal(t, "BRK-1", batch.Rows[0].Number)
	assert.Equal(t, "OIL-2", batch.Rows[1].Number)
	assert.Equal(t, 4, batch.Rows[1].Line)
	assert.Equal(t, 1, batch.Skipped)
	require.Len(t, batch.Problems, 1)
	assert.Contains(t, batch.Problems[0], "line 3")
	assert.Contains(t, batch.Problems[0], "bare \"")
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptySheet)
}

func TestParseXLSXReadsFirstSheet(t *testing.T) {
	workbook := excelize.NewFile()
	t.Cleanup(func() { _ = workbook.Close() })

	rows := [][]string{
		{"Name", "Alternate Name", "Number", "Company", "Quantity", "Category", "Price", "Shelf"},
		{"Clutch cable", "", "CLT-1", "Bajaj", "3", "Cables", "180", "D1"},
		{"Horn", "", "HRN-9", "Minda", "2", "Electrical", "₹310.75"},
		{"Mirror", "", "MIR-1", "Uno", "-1", "Body", "90", "E1"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		require.NoError(t, workbook.SetSheetRow("Sheet1", cell, &values))
	}
	buf, err := workbook.WriteToBuffer()
	require.NoError(t, err)

	batch, err := ParseXLSX(buf)
	require.NoError(t, err)
	require.Len(t, batch.Rows, 2)
	assert.Equal(t, "CLT-1", batch.Rows[0].Number)
	assert.Equal(t, "HRN-9", batch.Rows[1].Number)
	assert.Equal(t, "310.75", batch.Rows[1].Price.String())
	assert.Empty(t, batch.Rows[1].Shelf)
	assert.Equal(t, 1, batch.Skipped)
	assert.Contains(t, batch.Problems[0], "negative")
}

func TestParseXLSXRejectsGarbage(t *testing.T) {
	_, err := ParseXLSX(strings.NewReader("not a workbook"))
	assert.Error(t, err)
}

func TestFromRequestValidatesLikeASheetRow(t *testing.T) {
	batch, err := FromRequest(domain.PartCreateRequest{
		Name:     "Brake Pad",
		Number:   "BP-1",
		Quantity: 4,
		Price:    "₹1,250.50",
	})
	require.NoError(t, err)
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, "BP-1", batch.Rows[0].Number)
	assert.Equal(t, "1250.5", batch.Rows[0].Price.String())

	_, err = FromRequest(domain.PartCreateRequest{Name: "Brake Pad", Number: "BP-1", Quantity: -1, Price: "10"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}
