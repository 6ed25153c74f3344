package domain

// Reference entities maintained by the back office. The pricing import only reads them.

type Hotel struct {
	ID       int64
	Name     string
	Location string
	City     *string
	Country  *string
}

type RoomType struct {
	ID   int64
	Name string
}

type OccupancyType struct {
	ID        int64
	Name      string
	MaxGuests *int
}

type MealPlan struct {
	ID   int64
	Code string // CP|MAP|AP|EP...
	Name string
}

// ReferenceData is one consistent snapshot of every reference collection.
type ReferenceData struct {
	Hotels         []Hotel
	RoomTypes      []RoomType
	OccupancyTypes []OccupancyType
	MealPlans      []MealPlan
}
