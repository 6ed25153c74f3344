package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is how pricing dates are rendered in messages and JSON.
const DateLayout = "2006-01-02"

// CombinationKey identifies a pricing series. MealPlanID is 0 when the series has no meal plan
// (ids are auto-increment, so 0 never names a real meal plan).
type CombinationKey struct {
	HotelID         int64
	RoomTypeID      int64
	OccupancyTypeID int64
	MealPlanID      int64
}

// MealPlan returns the nullable meal plan id of the key.
func (k CombinationKey) MealPlan() *int64 {
	if k.MealPlanID == 0 {
		return nil
	}
	id := k.MealPlanID
	return &id
}

// DateRange is a half-open interval [Start, End).
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) Equal(o DateRange) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

// Intersects reports whether the ranges share any instant. Touching ranges do not intersect.
func (r DateRange) Intersects(o DateRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Overlaps reports an intersection between two ranges that are not identical.
func (r DateRange) Overlaps(o DateRange) bool {
	return !r.Equal(o) && r.Intersects(o)
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + " → " + r.End.Format(DateLayout)
}

// Pricing is a persisted price band.
type Pricing struct {
	ID              int64
	HotelID         int64
	RoomTypeID      int64
	OccupancyTypeID int64
	MealPlanID      *int64
	StartDate       time.Time
	EndDate         time.Time
	Price           decimal.Decimal
	IsActive        bool
}

func (p Pricing) Key() CombinationKey {
	k := CombinationKey{HotelID: p.HotelID, RoomTypeID: p.RoomTypeID, OccupancyTypeID: p.OccupancyTypeID}
	if p.MealPlanID != nil {
		k.MealPlanID = *p.MealPlanID
	}
	return k
}

func (p Pricing) Range() DateRange { return DateRange{Start: p.StartDate, End: p.EndDate} }

// PricingBand is the read model of a persisted band with reference names resolved.
type PricingBand struct {
	ID            int64           `json:"id"`
	RoomType      string          `json:"roomType"`
	OccupancyType string          `json:"occupancyType"`
	MealPlanCode  *string         `json:"mealPlanCode,omitempty"`
	StartDate     time.Time       `json:"startDate"`
	EndDate       time.Time       `json:"endDate"`
	Price         decimal.Decimal `json:"price"`
	IsActive      bool            `json:"isActive"`
}

type HotelPricingView struct {
	HotelID  int64         `json:"hotelId"`
	Name     string        `json:"name"`
	Location string        `json:"location"`
	Bands    []PricingBand `json:"bands"`
}
