package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hotel_pricing/internal/domain"
)

type QueryService struct {
	repo     domain.PricingReader
	cache    domain.Cache
	authz    domain.Authorizer
	cacheTTL time.Duration
}

func NewQueryService(r domain.PricingReader, c domain.Cache, a domain.Authorizer, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, authz: a, cacheTTL: ttl}
}

func hotelPricingKey(hotelID int64) string { return fmt.Sprintf("pricing:hotel:%d", hotelID) }

// GetHotelPricing returns every persisted band of a hotel, ordered by the repository.
func (s *QueryService) GetHotelPricing(ctx context.Context, who domain.Principal, hotelID int64) (domain.HotelPricingView, error) {
	if s.authz != nil && !s.authz.Allow(ctx, who, domain.ActionReadPricing) {
		return domain.HotelPricingView{}, domain.ErrForbidden
	}

	key := hotelPricingKey(hotelID)
	var out domain.HotelPricingView
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}

	h, err := s.repo.GetHotel(ctx, hotelID)
	if err != nil {
		return domain.HotelPricingView{}, err
	}
	bands, err := s.repo.ListHotelPricing(ctx, hotelID)
	if err != nil {
		return domain.HotelPricingView{}, err
	}

	// copy so the cached value never aliases the repository's slice
	out = domain.HotelPricingView{
		HotelID:  h.ID,
		Name:     h.Name,
		Location: h.Location,
		Bands:    make([]domain.PricingBand, len(bands)),
	}
	copy(out.Bands, bands)

	if s.cache != nil {
		// optional size guard
		if b, _ := json.Marshal(out); len(b) < 1_000_000 {
			_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
		}
	}
	return out, nil
}
