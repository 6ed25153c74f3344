package mysql

// -----------------------------------------------------------------------------
// REFERENCE DATA
// -----------------------------------------------------------------------------

const listHotelsSQL = `
SELECT id, name, location, city, country
FROM hotels
ORDER BY id
`

const listRoomTypesSQL = `SELECT id, name FROM room_types ORDER BY id`

const listOccupancyTypesSQL = `SELECT id, name, max_guests FROM occupancy_types ORDER BY id`

const listMealPlansSQL = `SELECT id, code, name FROM meal_plans ORDER BY id`

// -----------------------------------------------------------------------------
// PRICING WRITES
// -----------------------------------------------------------------------------

// meal_plan_key is a stored COALESCE(meal_plan_id, 0) so tuple matching works for NULL plans.
const findPricingPrefix = `
SELECT id, hotel_id, room_type_id, occupancy_type_id, meal_plan_id, start_date, end_date, price, is_active
FROM hotel_pricing
WHERE (hotel_id, room_type_id, occupancy_type_id, meal_plan_key) IN `

const findPricingSuffix = ` ORDER BY id`

const insertPricingSQL = `
INSERT INTO hotel_pricing
  (hotel_id, room_type_id, occupancy_type_id, meal_plan_id, start_date, end_date, price, is_active)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
`

const updatePricingSQL = `
UPDATE hotel_pricing
SET price = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const getHotelSQL = `
SELECT id, name, location, city, country
FROM hotels
WHERE id = ?
`

// Bands of one hotel, oldest season first; ties keep insertion order.
const listHotelPricingSQL = `
SELECT p.id, rt.name, ot.name, mp.code, p.start_date, p.end_date, p.price, p.is_active
FROM hotel_pricing p
JOIN room_types rt      ON rt.id = p.room_type_id
JOIN occupancy_types ot ON ot.id = p.occupancy_type_id
LEFT JOIN meal_plans mp ON mp.id = p.meal_plan_id
WHERE p.hotel_id = ?
ORDER BY p.start_date, rt.name, ot.name, p.id
`
