package workbook

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"hotel_pricing/internal/domain"
)

// preferred sheet names, checked case-insensitively before any content sniffing
var preferredSheets = []string{"pricing", "prices", "rates"}

func readXLSX(data []byte, sheet string) (table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return table{}, fmt.Errorf("%w: open xlsx: %v", ErrUnreadable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return table{}, fmt.Errorf("%w: workbook has no sheets", ErrUnreadable)
	}

	name, err := pickSheet(f, sheets, sheet)
	if err != nil {
		return table{}, err
	}

	// Raw values keep date cells as serial numbers instead of locale-formatted text.
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return table{}, fmt.Errorf("%w: read sheet %q: %v", ErrUnreadable, name, err)
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	t := table{Name: name, Rows: make([]rawRow, len(rows)), dateCell: serialDate(date1904)}
	for i, cells := range rows {
		t.Rows[i] = rawRow{Number: i + 1, Cells: cells}
	}
	return t, nil
}

func pickSheet(f *excelize.File, sheets []string, want string) (string, error) {
	if want != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, want) {
				return s, nil
			}
		}
		return "", fmt.Errorf("%w: sheet %q not found", ErrUnreadable, want)
	}
	for _, p := range preferredSheets {
		for _, s := range sheets {
			if strings.EqualFold(strings.TrimSpace(s), p) {
				return s, nil
			}
		}
	}
	for _, s := range sheets {
		if looksLikePricing(f, s) {
			return s, nil
		}
	}
	return sheets[0], nil
}

// looksLikePricing checks whether the first non-blank row of the sheet carries room_type_name.
func looksLikePricing(f *excelize.File, sheet string) bool {
	rows, err := f.Rows(sheet)
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		cells, err := rows.Columns()
		if err != nil {
			return false
		}
		if isBlank(cells) {
			continue
		}
		for _, c := range cells {
			if col, ok := canonicalColumn(c); ok && col == colRoomTypeName {
				return true
			}
		}
		return false
	}
	return false
}

// serialDate converts Excel serial numbers to ISO dates; other values pass through unchanged.
func serialDate(date1904 bool) func(string) string {
	return func(v string) string {
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || n <= 0 {
			return v
		}
		t, err := excelize.ExcelDateToTime(n, date1904)
		if err != nil {
			return v
		}
		return t.Format(domain.DateLayout)
	}
}
