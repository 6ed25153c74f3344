package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"hotel_pricing/internal/domain"
)

// ValidationError carries every row-level defect found in a batch.
type ValidationError struct {
	Errors []domain.ParseError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pricing rows failed validation: %d error(s)", len(e.Errors))
}

// accepted date layouts, tried in order; day-first for slashed/dashed numeric dates
var dateLayouts = []string{
	domain.DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"2/1/2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"2-Jan-06",
	"Jan 2, 2006",
}

// parseDate returns the calendar date anchored at 00:00 UTC.
func parseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

type batchKey struct {
	combo      domain.CombinationKey
	start, end int64
}

// MapRowsToPrepared resolves rows against lookups and expands every row into one prepared
// row per occupancy column. A row with any defect contributes nothing. Warnings are returned
// in both outcomes; on failure err is a *ValidationError and no prepared rows are returned.
func MapRowsToPrepared(rows []domain.ImportRow, lk *LookupMaps) ([]domain.PreparedRow, []string, error) {
	var (
		prepared []domain.PreparedRow
		errs     []domain.ParseError
		warnings []string
	)
	firstSeen := make(map[batchKey]int)
	byCombo := make(map[domain.CombinationKey][]domain.PreparedRow)

	for _, row := range rows {
		base, rowErrs := resolveRow(row, lk)
		if len(rowErrs) > 0 {
			// reported per occupancy cell: each cell is a price band that could not be built
			if len(row.OccupancyPrices) == 0 {
				errs = append(errs, rowErrs...)
				continue
			}
			for _, op := range row.OccupancyPrices {
				for _, e := range rowErrs {
					e.Message = fmt.Sprintf("%s (occupancy %q)", e.Message, op.ColumnLabel)
					errs = append(errs, e)
				}
			}
			continue
		}

		cells := make([]domain.PreparedRow, 0, len(row.OccupancyPrices))
		rejected := false
		for _, op := range row.OccupancyPrices {
			ot, ok := lk.OccupancyType(op.ColumnLabel)
			if !ok {
				errs = append(errs, domain.ParseError{
					RowNumber: row.RowNumber,
					Field:     "occupancy_type_name",
					Message:   "occupancy type not found",
					Value:     op.ColumnLabel,
				})
				rejected = true
				continue
			}
			p := base
			p.OccupancyTypeID = ot.ID
			p.OccupancyTypeLabel = op.ColumnLabel
			p.Price = op.Price
			cells = append(cells, p)
		}
		if rejected {
			continue
		}

		for _, p := range cells {
			k := batchKey{combo: p.Key(), start: p.StartDate.Unix(), end: p.EndDate.Unix()}
			if first, dup := firstSeen[k]; dup {
				errs = append(errs, domain.ParseError{
					RowNumber: p.RowNumber,
					Field:     "start_date",
					Message:   fmt.Sprintf("duplicate pricing for %q %s (already defined at row %d)", p.OccupancyTypeLabel, p.Range(), first),
					Value:     p.StartDate.Format(domain.DateLayout),
				})
				continue
			}
			firstSeen[k] = p.RowNumber

			for _, other := range byCombo[p.Key()] {
				if p.Range().Overlaps(other.Range()) {
					warnings = append(warnings, fmt.Sprintf(
						"row %d (%s) %s overlaps row %d %s for the same hotel, room type, occupancy and meal plan",
						p.RowNumber, p.OccupancyTypeLabel, p.Range(), other.RowNumber, other.Range()))
				}
			}
			byCombo[p.Key()] = append(byCombo[p.Key()], p)
			prepared = append(prepared, p)
		}
	}

	if len(errs) > 0 {
		return nil, warnings, &ValidationError{Errors: errs}
	}
	return prepared, warnings, nil
}

// resolveRow runs the row-level checks (hotel, room type, meal plan, dates) and returns the
// shared part of the row's prepared entries.
func resolveRow(row domain.ImportRow, lk *LookupMaps) (domain.PreparedRow, []domain.ParseError) {
	var errs []domain.ParseError
	fail := func(field, msg, value string) {
		errs = append(errs, domain.ParseError{RowNumber: row.RowNumber, Field: field, Message: msg, Value: value})
	}
	p := domain.PreparedRow{RowNumber: row.RowNumber, IsActive: row.IsActive}

	// 1) hotel: id first, then (name, location)
	var (
		hotel domain.Hotel
		found bool
	)
	if strings.TrimSpace(row.HotelID) != "" {
		hotel, found = lk.HotelByID(row.HotelID)
	}
	if !found {
		hotel, found = lk.HotelByName(row.HotelName, row.LocationName)
	}
	switch {
	case found:
		p.HotelID = hotel.ID
	case strings.TrimSpace(row.HotelID) == "" && strings.TrimSpace(row.HotelName) == "":
		fail("hotel_id", "hotel_id or hotel_name is required", "")
	case strings.TrimSpace(row.LocationName) == "" && lk.HotelNameAmbiguous(row.HotelName):
		fail("location_name", "hotel name matches several hotels; location_name is required", row.HotelName)
	default:
		fail("hotel_id", "hotel not found", hotelValue(row))
	}

	// 2) room type
	if strings.TrimSpace(row.RoomTypeName) == "" {
		fail("room_type_name", "room_type_name is required", "")
	} else if rt, ok := lk.RoomType(row.RoomTypeName); ok {
		p.RoomTypeID = rt.ID
	} else {
		fail("room_type_name", "room type not found", row.RoomTypeName)
	}

	// 3) meal plan is optional
	if strings.TrimSpace(row.MealPlanCode) != "" {
		if mp, ok := lk.MealPlan(row.MealPlanCode); ok {
			id := mp.ID
			p.MealPlanID = &id
		} else {
			fail("meal_plan_code", "meal plan not found", row.MealPlanCode)
		}
	}

	// 4) dates
	start, startErr := requiredDate(row.StartDate)
	if startErr != nil {
		fail("start_date", startErr.Error(), row.StartDate)
	}
	end, endErr := requiredDate(row.EndDate)
	if endErr != nil {
		fail("end_date", endErr.Error(), row.EndDate)
	}
	if startErr == nil && endErr == nil {
		if start.After(end) {
			fail("end_date", fmt.Sprintf("end_date is before start_date %s", start.Format(domain.DateLayout)), row.EndDate)
		}
		p.StartDate, p.EndDate = start, end
	}
	return p, errs
}

func requiredDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("date is required")
	}
	return parseDate(raw)
}

func hotelValue(row domain.ImportRow) string {
	if v := strings.TrimSpace(row.HotelID); v != "" {
		return v
	}
	if loc := strings.TrimSpace(row.LocationName); loc != "" {
		return strings.TrimSpace(row.HotelName) + " / " + loc
	}
	return strings.TrimSpace(row.HotelName)
}
