package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hotel_pricing/internal/domain"
)

// combinations per FindByCombinations round trip (4 placeholders each)
const findChunk = 250

func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// ---- reference data ----

func (r *Repo) LoadReferenceData(ctx context.Context) (domain.ReferenceData, error) {
	var ref domain.ReferenceData

	hotels, err := r.db.QueryContext(ctx, listHotelsSQL)
	if err != nil {
		return ref, fmt.Errorf("list hotels: %w", err)
	}
	defer hotels.Close()
	for hotels.Next() {
		var (
			h             domain.Hotel
			city, country sql.NullString
		)
		if err := hotels.Scan(&h.ID, &h.Name, &h.Location, &city, &country); err != nil {
			return ref, err
		}
		h.City, h.Country = nullStr(city), nullStr(country)
		ref.Hotels = append(ref.Hotels, h)
	}
	if err := hotels.Err(); err != nil {
		return ref, err
	}

	rooms, err := r.db.QueryContext(ctx, listRoomTypesSQL)
	if err != nil {
		return ref, fmt.Errorf("list room types: %w", err)
	}
	defer rooms.Close()
	for rooms.Next() {
		var rt domain.RoomType
		if err := rooms.Scan(&rt.ID, &rt.Name); err != nil {
			return ref, err
		}
		ref.RoomTypes = append(ref.RoomTypes, rt)
	}
	if err := rooms.Err(); err != nil {
		return ref, err
	}

	occs, err := r.db.QueryContext(ctx, listOccupancyTypesSQL)
	if err != nil {
		return ref, fmt.Errorf("list occupancy types: %w", err)
	}
	defer occs.Close()
	for occs.Next() {
		var (
			ot        domain.OccupancyType
			maxGuests sql.NullInt64
		)
		if err := occs.Scan(&ot.ID, &ot.Name, &maxGuests); err != nil {
			return ref, err
		}
		if maxGuests.Valid {
			m := int(maxGuests.Int64)
			ot.MaxGuests = &m
		}
		ref.OccupancyTypes = append(ref.OccupancyTypes, ot)
	}
	if err := occs.Err(); err != nil {
		return ref, err
	}

	plans, err := r.db.QueryContext(ctx, listMealPlansSQL)
	if err != nil {
		return ref, fmt.Errorf("list meal plans: %w", err)
	}
	defer plans.Close()
	for plans.Next() {
		var mp domain.MealPlan
		if err := plans.Scan(&mp.ID, &mp.Code, &mp.Name); err != nil {
			return ref, err
		}
		ref.MealPlans = append(ref.MealPlans, mp)
	}
	return ref, plans.Err()
}

// ---- pricing writes ----

func (r *Repo) FindByCombinations(ctx context.Context, keys []domain.CombinationKey) ([]domain.Pricing, error) {
	var out []domain.Pricing
	for start := 0; start < len(keys); start += findChunk {
		end := min(start+findChunk, len(keys))
		chunk := keys[start:end]

		tuples := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*4)
		for i, k := range chunk {
			tuples[i] = "(?,?,?,?)"
			args = append(args, k.HotelID, k.RoomTypeID, k.OccupancyTypeID, k.MealPlanID)
		}
		q := findPricingPrefix + "(" + strings.Join(tuples, ",") + ")" + findPricingSuffix

		found, err := r.queryPricing(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

func (r *Repo) queryPricing(ctx context.Context, q string, args ...any) ([]domain.Pricing, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Pricing
	for rows.Next() {
		var (
			p        domain.Pricing
			mealPlan sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.HotelID, &p.RoomTypeID, &p.OccupancyTypeID, &mealPlan,
			&p.StartDate, &p.EndDate, &p.Price, &p.IsActive); err != nil {
			return nil, err
		}
		if mealPlan.Valid {
			id := mealPlan.Int64
			p.MealPlanID = &id
		}
		p.StartDate, p.EndDate = calendarDate(p.StartDate), calendarDate(p.EndDate)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) CreatePricing(ctx context.Context, p domain.Pricing) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertPricingSQL,
		p.HotelID,
		p.RoomTypeID,
		p.OccupancyTypeID,
		valInt64(p.MealPlanID),
		p.StartDate.Format(domain.DateLayout),
		p.EndDate.Format(domain.DateLayout),
		p.Price,
		p.IsActive,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) UpdatePricing(ctx context.Context, id int64, price decimal.Decimal, isActive bool) error {
	// RowsAffected counts changed rows only, so an unchanged re-run reports 0; not checked.
	_, err := r.db.ExecContext(ctx, updatePricingSQL, price, isActive, id)
	return err
}

// ---- reads ----

func (r *Repo) GetHotel(ctx context.Context, id int64) (domain.Hotel, error) {
	var (
		h             domain.Hotel
		city, country sql.NullString
	)
	err := r.db.QueryRowContext(ctx, getHotelSQL, id).Scan(&h.ID, &h.Name, &h.Location, &city, &country)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Hotel{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Hotel{}, err
	}
	h.City, h.Country = nullStr(city), nullStr(country)
	return h, nil
}

func (r *Repo) ListHotelPricing(ctx context.Context, hotelID int64) ([]domain.PricingBand, error) {
	rows, err := r.db.QueryContext(ctx, listHotelPricingSQL, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.PricingBand{}
	for rows.Next() {
		var (
			b    domain.PricingBand
			code sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.RoomType, &b.OccupancyType, &code, &b.StartDate, &b.EndDate, &b.Price, &b.IsActive); err != nil {
			return nil, err
		}
		b.MealPlanCode = nullStr(code)
		b.StartDate, b.EndDate = calendarDate(b.StartDate), calendarDate(b.EndDate)
		out = append(out, b)
	}
	return out, rows.Err()
}

// calendarDate re-anchors a scanned DATE at 00:00 UTC. The driver parses DATE columns in
// the DSN's loc, and exact-range matching compares against UTC dates.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
