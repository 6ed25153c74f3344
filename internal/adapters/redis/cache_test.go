package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	redisad "hotel_pricing/internal/adapters/redis"
	"hotel_pricing/internal/domain"
)

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_RoundTripAndTTL(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	in := domain.HotelPricingView{
		HotelID: 1, Name: "Lotus Inn", Location: "Goa",
		Bands: []domain.PricingBand{{ID: 7, RoomType: "Deluxe", OccupancyType: "Single", Price: decimal.RequireFromString("2000.50"), IsActive: true}},
	}
	require.NoError(t, c.Set(ctx, "pricing:hotel:1", in, 60))
	require.True(t, mr.Exists("test:pricing:hotel:1"))

	var out domain.HotelPricingView
	ok, err := c.Get(ctx, "pricing:hotel:1", &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Lotus Inn", out.Name)
	require.True(t, out.Bands[0].Price.Equal(in.Bands[0].Price))

	mr.FastForward(61 * time.Second)
	ok, err = c.Get(ctx, "pricing:hotel:1", &out)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_DelAndCorruptValue(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "reference:v1", domain.ReferenceData{RoomTypes: []domain.RoomType{{ID: 1, Name: "Deluxe"}}}, 60))
	require.NoError(t, c.Del(ctx, "reference:v1"))
	var ref domain.ReferenceData
	ok, err := c.Get(ctx, "reference:v1", &ref)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mr.Set("test:reference:v1", "{not json"))
	ok, err = c.Get(ctx, "reference:v1", &ref)
	require.Error(t, err)
	require.False(t, ok)
	require.False(t, mr.Exists("test:reference:v1"), "corrupt entry is dropped")
}
