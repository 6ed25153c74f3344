package workbook

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const delimitedSheetName = "CSV"

var utf8BOM = []byte("\xef\xbb\xbf")

// readDelimited reads comma, semicolon or tab separated text. encoding/csv drops empty lines,
// so record line positions are used to re-insert them as blank rows.
func readDelimited(data []byte) (table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1

	t := table{Name: delimitedSheetName}
	next := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		line, _ := r.FieldPos(0)
		for ; next < line; next++ {
			t.Rows = append(t.Rows, rawRow{Number: next})
		}
		t.Rows = append(t.Rows, rawRow{Number: line, Cells: rec})

		span := 1
		for _, c := range rec {
			span += strings.Count(c, "\n")
		}
		next = line + span
	}
	if len(t.Rows) == 0 {
		return table{}, fmt.Errorf("%w: no rows", ErrUnreadable)
	}
	return t, nil
}

// sniffDelimiter picks the most frequent of , ; and tab on the first line.
func sniffDelimiter(data []byte) rune {
	line, _ := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	best, bestN := ',', strings.Count(line, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(line, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}
