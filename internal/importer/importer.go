// Package importer turns uploaded part sheets into import rows. Columns are
// name, alternate name, number, company, quantity, category, price, shelf.
// Bad rows are counted and described; they never abort a batch.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"partsledger/backend/internal/domain"
)

const columns = 8

var ErrEmptySheet = errors.New("importer: sheet has no rows")

type Batch struct {
	Rows     []domain.ImportRow
	Skipped  int
	Problems []string
}

// ParseCSV skips rows the csv reader cannot tokenize and reports them as
// problems alongside rows that fail validation. Only read failures abort.
func ParseCSV(r io.Reader) (Batch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		records   [][]string
		lines     []int
		malformed Batch
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			malformed.Skipped++
			malformed.Problems = append(malformed.Problems, fmt.Sprintf("line %d: %v", parseErr.StartLine, parseErr.Err))
			continue
		}
		if err != nil {
			return Batch{}, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}
	if len(records) == 0 && malformed.Skipped > 0 {
		return malformed, nil
	}

	batch, err := parseRecords(records, lines, false)
	if err != nil {
		return Batch{}, err
	}
	batch.Skipped += malformed.Skipped
	batch.Problems = append(malformed.Problems, batch.Problems...)
	return batch, nil
}

// ParseXLSX reads the first sheet of a workbook.
func ParseXLSX(r io.Reader) (Batch, error) {
	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return Batch{}, fmt.Errorf("open workbook: %w", err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return Batch{}, ErrEmptySheet
	}
	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		return Batch{}, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	// GetRows drops trailing empty cells, so a blank shelf shortens the row.
	return parseRecords(rows, nil, true)
}

// parseRecords validates records. lines holds each record's source line;
// when nil the record index is used.
func parseRecords(records [][]string, lines []int, padTrailing bool) (Batch, error) {
	if len(records) == 0 {
		return Batch{}, ErrEmptySheet
	}

	batch := Batch{}
	start := 0
	if isHeader(records[0]) {
		start = 1
	}

	for i := start; i < len(records); i++ {
		line := i + 1
		if lines != nil {
			line = lines[i]
		}
		record := records[i]
		if blank(record) {
			continue
		}
		if padTrailing && len(record) < columns && len(record) >= columns-1 {
			record = append(record, make([]string, columns-len(record))...)
		}

		row, err := parseRow(line, record)
		if err != nil {
			batch.Skipped++
			batch.Problems = append(batch.Problems, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		batch.Rows = append(batch.Rows, row)
	}
	return batch, nil
}

func parseRow(line int, record []string) (domain.ImportRow, error) {
	if len(record) != columns {
		return domain.ImportRow{}, fmt.Errorf("expected %d columns, got %d", columns, len(record))
	}
	cell := func(i int) string { return strings.TrimSpace(record[i]) }

	row := domain.ImportRow{
		Line:          line,
		Name:          cell(0),
		AlternateName: cell(1),
		Number:        cell(2),
		Company:       cell(3),
		Category:      cell(5),
		Shelf:         cell(7),
	}
	if row.Name == "" {
		return domain.ImportRow{}, errors.New("name is required")
	}
	if row.Number == "" {
		return domain.ImportRow{}, errors.New("part number is required")
	}

	quantity, err := strconv.Atoi(cell(4))
	if err != nil {
		return domain.ImportRow{}, fmt.Errorf("quantity %q is not a whole number", cell(4))
	}
	if quantity < 0 {
		return domain.ImportRow{}, fmt.Errorf("quantity %d is negative", quantity)
	}
	row.Quantity = quantity

	price, err := domain.ParsePrice(cell(6))
	if err != nil {
		return domain.ImportRow{}, err
	}
	if price.IsNegative() {
		return domain.ImportRow{}, fmt.Errorf("price %s is negative", price)
	}
	row.Price = price
	return row, nil
}

func isHeader(record []string) bool {
	if len(record) < 3 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(record[0]))
	third := strings.ToLower(strings.TrimSpace(record[2]))
	return first == "name" || first == "part name" || third == "number" || third == "part number"
}

func blank(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

// FromRequest validates one part entered by hand with the same rules as a
// sheet row.
func FromRequest(req domain.PartCreateRequest) (Batch, error) {
	row, err := parseRow(1, []string{
		req.Name,
		req.AlternateName,
		req.Number,
		req.Company,
		strconv.Itoa(req.Quantity),
		req.Category,
		req.Price,
		req.Shelf,
	})
	if err != nil {
		return Batch{}, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
	}
	return Batch{Rows: []domain.ImportRow{row}}, nil
}
