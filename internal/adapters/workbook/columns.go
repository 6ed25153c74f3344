package workbook

import "strings"

// Recognized header names. Any other non-blank header is an occupancy column.
const (
	colHotelID       = "hotel_id"
	colHotelName     = "hotel_name"
	colLocationName  = "location_name"
	colRoomTypeName  = "room_type_name"
	colMealPlanCode  = "meal_plan_code"
	colStartDate     = "start_date"
	colEndDate       = "end_date"
	colIsActive      = "is_active"
	colOccupancyType = "occupancy_type_name"
	colPricePerNight = "price_per_night"
)

/********** alias registry (single source of truth) **********/

var headerAliases = map[string][]string{
	colHotelID:       {"hotel_id", "hotelid", "hotel_code"},
	colHotelName:     {"hotel_name", "hotel"},
	colLocationName:  {"location_name", "location", "city"},
	colRoomTypeName:  {"room_type_name", "room_type", "room"},
	colMealPlanCode:  {"meal_plan_code", "meal_plan", "plan"},
	colStartDate:     {"start_date", "from", "valid_from"},
	colEndDate:       {"end_date", "to", "valid_to"},
	colIsActive:      {"is_active", "active"},
	colOccupancyType: {"occupancy_type_name", "occupancy_type", "occupancy"},
	colPricePerNight: {"price_per_night", "price", "rate"},
}

var headerIndex = func() map[string]string {
	m := make(map[string]string)
	for canonical, aliases := range headerAliases {
		for _, a := range aliases {
			m[a] = canonical
		}
	}
	return m
}()

// headerKey folds case, spaces and dashes so "Room Type Name" binds to room_type_name.
func headerKey(raw string) string {
	s := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
	s = strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(s)
	return strings.Join(strings.Fields(s), "_")
}

// canonicalColumn returns the recognized column a header binds to, if any.
func canonicalColumn(raw string) (string, bool) {
	c, ok := headerIndex[headerKey(raw)]
	return c, ok
}

// labelKey normalizes an occupancy column label for duplicate detection.
func labelKey(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}

type occupancyColumn struct {
	Label string
	Index int
}

type columnMap struct {
	fields      map[string]int
	occupancies []occupancyColumn
}

func (m columnMap) has(field string) bool {
	_, ok := m.fields[field]
	return ok
}

func (m columnMap) longLayout() bool {
	return m.has(colOccupancyType) && m.has(colPricePerNight)
}
