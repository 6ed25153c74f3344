package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ReferenceProvider returns the current hotels, room types, occupancy types and meal plans.
type ReferenceProvider interface {
	LoadReferenceData(ctx context.Context) (ReferenceData, error)
}

type PricingRepository interface {
	// FindByCombinations returns every persisted band belonging to any of keys.
	FindByCombinations(ctx context.Context, keys []CombinationKey) ([]Pricing, error)
	CreatePricing(ctx context.Context, p Pricing) (int64, error)
	// UpdatePricing overwrites price and is_active only.
	UpdatePricing(ctx context.Context, id int64, price decimal.Decimal, isActive bool) error
}

// Read paths
type PricingReader interface {
	GetHotel(ctx context.Context, id int64) (Hotel, error)
	ListHotelPricing(ctx context.Context, hotelID int64) ([]PricingBand, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type Action string

const (
	ActionImportPricing Action = "pricing:import"
	ActionReadPricing   Action = "pricing:read"
)

type Principal struct {
	Name string
	Role string
}

// Authorizer is the allow/deny gate in front of pipeline operations.
type Authorizer interface {
	Allow(ctx context.Context, p Principal, a Action) bool
}
