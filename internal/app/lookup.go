package app

import (
	"strconv"
	"strings"

	"hotel_pricing/internal/domain"
)

// LookupMaps indexes one reference snapshot by the keys spreadsheet authors type.
// It is built once per import run and never mutated afterwards.
type LookupMaps struct {
	hotelsByID      map[string]domain.Hotel
	hotelsByNameLoc map[string]domain.Hotel
	hotelsByName    map[string]*domain.Hotel // nil entry: name shared by several hotels
	roomTypesByName map[string]domain.RoomType
	occupancyByName map[string]domain.OccupancyType
	mealPlansByCode map[string]domain.MealPlan
}

func BuildLookupMaps(ref domain.ReferenceData) *LookupMaps {
	m := &LookupMaps{
		hotelsByID:      make(map[string]domain.Hotel, len(ref.Hotels)),
		hotelsByNameLoc: make(map[string]domain.Hotel, len(ref.Hotels)),
		hotelsByName:    make(map[string]*domain.Hotel, len(ref.Hotels)),
		roomTypesByName: make(map[string]domain.RoomType, len(ref.RoomTypes)),
		occupancyByName: make(map[string]domain.OccupancyType, len(ref.OccupancyTypes)),
		mealPlansByCode: make(map[string]domain.MealPlan, len(ref.MealPlans)),
	}
	for i := range ref.Hotels {
		h := ref.Hotels[i]
		m.hotelsByID[strconv.FormatInt(h.ID, 10)] = h
		m.hotelsByNameLoc[hotelKey(h.Name, h.Location)] = h

		n := normalizeName(h.Name)
		if _, seen := m.hotelsByName[n]; seen {
			m.hotelsByName[n] = nil
		} else {
			m.hotelsByName[n] = &h
		}
	}
	for _, rt := range ref.RoomTypes {
		m.roomTypesByName[normalizeName(rt.Name)] = rt
	}
	for _, ot := range ref.OccupancyTypes {
		m.occupancyByName[normalizeName(ot.Name)] = ot
	}
	for _, mp := range ref.MealPlans {
		m.mealPlansByCode[normalizeCode(mp.Code)] = mp
	}
	return m
}

func (m *LookupMaps) HotelByID(raw string) (domain.Hotel, bool) {
	h, ok := m.hotelsByID[normalizeID(raw)]
	return h, ok
}

// HotelByName matches on (name, location). Without a location the name alone must be unambiguous.
func (m *LookupMaps) HotelByName(name, location string) (domain.Hotel, bool) {
	if strings.TrimSpace(name) == "" {
		return domain.Hotel{}, false
	}
	if strings.TrimSpace(location) != "" {
		h, ok := m.hotelsByNameLoc[hotelKey(name, location)]
		return h, ok
	}
	if h := m.hotelsByName[normalizeName(name)]; h != nil {
		return *h, true
	}
	return domain.Hotel{}, false
}

// HotelNameAmbiguous reports whether several hotels share name, so a location is needed.
func (m *LookupMaps) HotelNameAmbiguous(name string) bool {
	h, seen := m.hotelsByName[normalizeName(name)]
	return seen && h == nil
}

func (m *LookupMaps) RoomType(name string) (domain.RoomType, bool) {
	rt, ok := m.roomTypesByName[normalizeName(name)]
	return rt, ok
}

func (m *LookupMaps) OccupancyType(label string) (domain.OccupancyType, bool) {
	ot, ok := m.occupancyByName[normalizeName(label)]
	return ot, ok
}

func (m *LookupMaps) MealPlan(code string) (domain.MealPlan, bool) {
	mp, ok := m.mealPlansByCode[normalizeCode(code)]
	return mp, ok
}

// names are free text: trim, collapse whitespace, lowercase
func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// codes are identifiers: trim, uppercase
func normalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// normalizeID tolerates numeric cells rendered as "12.0".
func normalizeID(s string) string {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

func hotelKey(name, location string) string {
	return normalizeName(name) + "|" + normalizeName(location)
}
