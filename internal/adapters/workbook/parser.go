// Package workbook turns uploaded pricing spreadsheets (xlsx or delimited text)
// into ordered import rows, collecting cell-level defects instead of stopping at the first one.
package workbook

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"hotel_pricing/internal/domain"
)

// ErrUnreadable is returned when the upload cannot be read as a table at all.
var ErrUnreadable = errors.New("workbook: unreadable file")

var zipMagic = []byte("PK\x03\x04")

type Options struct {
	FileName string
	// SheetName forces a sheet; empty means auto-detect.
	SheetName string
}

type Parsed struct {
	Rows     []domain.ImportRow
	Errors   []domain.ParseError
	Warnings []string
	Stats    domain.ImportStats
}

// rawRow is one sheet row; Number is its 1-based position in the source.
type rawRow struct {
	Number int
	Cells  []string
}

type table struct {
	Name string
	Rows []rawRow
	// dateCell rewrites a date cell before it is stored on the row (xlsx serials).
	dateCell func(string) string
}

// Parse reads data as a workbook (zip container) or delimited text and maps every data row.
func Parse(data []byte, opts Options) (Parsed, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Parsed{}, fmt.Errorf("%w: empty file", ErrUnreadable)
	}

	var (
		t   table
		err error
	)
	ext := strings.ToLower(filepath.Ext(opts.FileName))
	switch {
	case bytes.HasPrefix(data, zipMagic):
		t, err = readXLSX(data, opts.SheetName)
	case ext == ".xlsx" || ext == ".xlsm":
		return Parsed{}, fmt.Errorf("%w: %s is not a valid xlsx workbook", ErrUnreadable, opts.FileName)
	case ext == ".xls":
		return Parsed{}, fmt.Errorf("%w: legacy .xls workbooks are not supported, save as .xlsx", ErrUnreadable)
	default:
		t, err = readDelimited(data)
	}
	if err != nil {
		return Parsed{}, err
	}

	out := parseTable(t)
	out.Stats.FileName = opts.FileName
	return out, nil
}

func parseTable(t table) Parsed {
	out := Parsed{Stats: domain.ImportStats{SheetName: t.Name, TotalRows: len(t.Rows)}}

	hdr := -1
	for i, r := range t.Rows {
		if !isBlank(r.Cells) {
			hdr = i
			break
		}
	}
	if hdr < 0 {
		out.Errors = append(out.Errors, domain.ParseError{RowNumber: 1, Message: fmt.Sprintf("sheet %q has no header row", t.Name)})
		return out
	}

	header := t.Rows[hdr]
	cols, headerErrs := bindColumns(header)
	if len(headerErrs) > 0 {
		out.Errors = append(out.Errors, headerErrs...)
		return out
	}

	unheaded := map[int]bool{}
	for _, r := range t.Rows[hdr+1:] {
		if isBlank(r.Cells) {
			out.Stats.SkippedEmptyRows++
			continue
		}
		for i, c := range r.Cells {
			if strings.TrimSpace(c) != "" && (i >= len(header.Cells) || strings.TrimSpace(header.Cells[i]) == "") && !unheaded[i] {
				unheaded[i] = true
				out.Warnings = append(out.Warnings, fmt.Sprintf("column %d has no header; its values were ignored (first seen on row %d)", i+1, r.Number))
			}
		}

		row, errs := mapRow(r, cols, t.dateCell)
		out.Errors = append(out.Errors, errs...)
		if len(row.OccupancyPrices) > 0 {
			out.Rows = append(out.Rows, row)
		}
	}
	out.Stats.DataRows = len(out.Rows)
	return out
}

// bindColumns maps recognized headers to positions and discovers occupancy columns.
func bindColumns(header rawRow) (columnMap, []domain.ParseError) {
	cols := columnMap{fields: map[string]int{}}
	var errs []domain.ParseError
	seenLabels := map[string]bool{}

	for i, cell := range header.Cells {
		label := strings.TrimSpace(cell)
		if label == "" {
			continue
		}
		if field, ok := canonicalColumn(label); ok {
			if _, dup := cols.fields[field]; dup {
				errs = append(errs, domain.ParseError{RowNumber: header.Number, Field: field, Message: "duplicate column", Value: label})
				continue
			}
			cols.fields[field] = i
			continue
		}
		k := labelKey(label)
		if seenLabels[k] {
			errs = append(errs, domain.ParseError{RowNumber: header.Number, Field: label, Message: "duplicate occupancy column", Value: label})
			continue
		}
		seenLabels[k] = true
		cols.occupancies = append(cols.occupancies, occupancyColumn{Label: label, Index: i})
	}

	for _, f := range []string{colRoomTypeName, colStartDate, colEndDate} {
		if !cols.has(f) {
			errs = append(errs, domain.ParseError{RowNumber: header.Number, Field: f, Message: "missing required column"})
		}
	}
	if !cols.has(colHotelID) && !cols.has(colHotelName) {
		errs = append(errs, domain.ParseError{RowNumber: header.Number, Field: colHotelID, Message: "missing required column (hotel_id or hotel_name)"})
	}
	switch {
	case cols.has(colOccupancyType) != cols.has(colPricePerNight):
		errs = append(errs, domain.ParseError{RowNumber: header.Number, Field: colOccupancyType, Message: "occupancy_type_name and price_per_night must be used together"})
	case !cols.longLayout() && len(cols.occupancies) == 0:
		errs = append(errs, domain.ParseError{RowNumber: header.Number, Field: colOccupancyType, Message: "no occupancy price columns"})
	}
	return cols, errs
}

func mapRow(r rawRow, cols columnMap, dateCell func(string) string) (domain.ImportRow, []domain.ParseError) {
	get := func(idx int) string {
		if idx < 0 || idx >= len(r.Cells) {
			return ""
		}
		return strings.TrimSpace(r.Cells[idx])
	}
	field := func(name string) string {
		idx, ok := cols.fields[name]
		if !ok {
			return ""
		}
		return get(idx)
	}

	row := domain.ImportRow{
		RowNumber:    r.Number,
		HotelID:      field(colHotelID),
		HotelName:    field(colHotelName),
		LocationName: field(colLocationName),
		RoomTypeName: field(colRoomTypeName),
		MealPlanCode: field(colMealPlanCode),
		StartDate:    field(colStartDate),
		EndDate:      field(colEndDate),
		IsActive:     true,
	}
	if dateCell != nil {
		row.StartDate = dateCell(row.StartDate)
		row.EndDate = dateCell(row.EndDate)
	}

	var errs []domain.ParseError
	if v := field(colIsActive); v != "" {
		b, ok := parseBool(v)
		if !ok {
			errs = append(errs, domain.ParseError{RowNumber: r.Number, Field: colIsActive, Message: "must be true/false", Value: v})
		}
		row.IsActive = b
	}

	addPrice := func(label, fieldName, raw string) {
		p, err := parsePrice(raw)
		if err != nil {
			errs = append(errs, domain.ParseError{RowNumber: r.Number, Field: fieldName, Message: err.Error(), Value: raw})
			return
		}
		row.OccupancyPrices = append(row.OccupancyPrices, domain.OccupancyPrice{ColumnLabel: label, Price: p})
	}

	if cols.longLayout() {
		label, raw := field(colOccupancyType), field(colPricePerNight)
		switch {
		case label == "" && raw == "":
		case label == "":
			errs = append(errs, domain.ParseError{RowNumber: r.Number, Field: colOccupancyType, Message: "required when price_per_night is set", Value: raw})
		case raw == "":
			errs = append(errs, domain.ParseError{RowNumber: r.Number, Field: colPricePerNight, Message: "required when occupancy_type_name is set", Value: label})
		default:
			addPrice(label, colPricePerNight, raw)
		}
	}
	for _, oc := range cols.occupancies {
		if raw := get(oc.Index); raw != "" {
			addPrice(oc.Label, oc.Label, raw)
		}
	}

	if len(row.OccupancyPrices) == 0 && len(errs) == 0 {
		errs = append(errs, domain.ParseError{RowNumber: r.Number, Field: colPricePerNight, Message: "row has no occupancy prices"})
	}
	return row, errs
}

// prices are stored as DECIMAL(12,2)
const priceScale = 2

var maxPrice = decimal.New(1, 10)

var priceCleaner = strings.NewReplacer(",", "", " ", "", "\u00a0", "", "₹", "", "$", "", "€", "", "£", "")

func parsePrice(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(priceCleaner.Replace(raw))
	if err != nil {
		return decimal.Decimal{}, errors.New("invalid price")
	}
	if d.IsNegative() {
		return decimal.Decimal{}, errors.New("price must be non-negative")
	}
	if !d.Equal(d.Round(priceScale)) {
		return decimal.Decimal{}, fmt.Errorf("price has more than %d decimal places", priceScale)
	}
	if d.GreaterThanOrEqual(maxPrice) {
		return decimal.Decimal{}, fmt.Errorf("price must be below %s", maxPrice)
	}
	return d, nil
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "t", "yes", "y", "1", "active":
		return true, true
	case "false", "f", "no", "n", "0", "inactive":
		return false, true
	}
	return false, false
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
