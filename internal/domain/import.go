package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OccupancyPrice is one occupancy column of a sheet row.
type OccupancyPrice struct {
	ColumnLabel string
	Price       decimal.Decimal
}

// ImportRow is a parsed sheet row. Dates are kept as written; resolution happens later.
type ImportRow struct {
	RowNumber       int
	HotelID         string
	HotelName       string
	LocationName    string
	RoomTypeName    string
	MealPlanCode    string
	StartDate       string
	EndDate         string
	IsActive        bool
	OccupancyPrices []OccupancyPrice
}

// ParseError is a row-numbered defect found while parsing or validating an upload.
type ParseError struct {
	RowNumber int    `json:"rowNumber"`
	Field     string `json:"field,omitempty"`
	Message   string `json:"message"`
	Value     string `json:"value,omitempty"`
}

func (e ParseError) String() string {
	if e.Field == "" {
		return fmt.Sprintf("row %d: %s", e.RowNumber, e.Message)
	}
	return fmt.Sprintf("row %d: %s: %s", e.RowNumber, e.Field, e.Message)
}

type ImportStats struct {
	FileName         string `json:"fileName"`
	SheetName        string `json:"sheetName"`
	TotalRows        int    `json:"totalRows"`
	DataRows         int    `json:"dataRows"`
	SkippedEmptyRows int    `json:"skippedEmptyRows"`
}

// PreparedRow is a resolved, validated price band ready for persistence.
// One ImportRow expands into one PreparedRow per occupancy column.
type PreparedRow struct {
	RowNumber          int
	HotelID            int64
	RoomTypeID         int64
	OccupancyTypeID    int64
	OccupancyTypeLabel string
	MealPlanID         *int64
	StartDate          time.Time
	EndDate            time.Time
	Price              decimal.Decimal
	IsActive           bool
}

func (p PreparedRow) Key() CombinationKey {
	k := CombinationKey{HotelID: p.HotelID, RoomTypeID: p.RoomTypeID, OccupancyTypeID: p.OccupancyTypeID}
	if p.MealPlanID != nil {
		k.MealPlanID = *p.MealPlanID
	}
	return k
}

func (p PreparedRow) Range() DateRange { return DateRange{Start: p.StartDate, End: p.EndDate} }

// Pricing converts the prepared row into a new (unsaved) price band.
func (p PreparedRow) Pricing() Pricing {
	return Pricing{
		HotelID:         p.HotelID,
		RoomTypeID:      p.RoomTypeID,
		OccupancyTypeID: p.OccupancyTypeID,
		MealPlanID:      p.MealPlanID,
		StartDate:       p.StartDate,
		EndDate:         p.EndDate,
		Price:           p.Price,
		IsActive:        p.IsActive,
	}
}

type ImportSummary struct {
	SheetName        string `json:"sheetName"`
	Processed        int    `json:"processed"`
	Created          int    `json:"created"`
	Updated          int    `json:"updated"`
	SkippedEmptyRows int    `json:"skippedEmptyRows"`
	FileName         string `json:"fileName"`
	// DryRun summaries count what would have been written.
	DryRun bool `json:"dryRun,omitempty"`
}

type ImportResult struct {
	ImportID string
	Summary  ImportSummary
	Warnings []string
}
