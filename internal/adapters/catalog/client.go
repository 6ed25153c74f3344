// Package catalog reads reference data (hotels, room types, occupancy types, meal plans)
// from the back office content API.
package catalog

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"hotel_pricing/internal/adapters/observability"
	"hotel_pricing/internal/domain"
)

const service = "catalog"

type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 20 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// ---- wire types ----

type envelope[T any] struct {
	Data []T `json:"data"`
}

type hotelDTO struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Location string  `json:"location"`
	City     *string `json:"city"`
	Country  *string `json:"country"`
}

type roomTypeDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type occupancyTypeDTO struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	MaxGuests *int   `json:"maxGuests"`
}

type mealPlanDTO struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// LoadReferenceData fetches the four collections concurrently; any failure fails the snapshot.
func (c *Client) LoadReferenceData(ctx context.Context) (domain.ReferenceData, error) {
	var (
		hotels []hotelDTO
		rooms  []roomTypeDTO
		occs   []occupancyTypeDTO
		plans  []mealPlanDTO
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return list(gctx, c, "hotels", &hotels) })
	g.Go(func() error { return list(gctx, c, "room-types", &rooms) })
	g.Go(func() error { return list(gctx, c, "occupancy-types", &occs) })
	g.Go(func() error { return list(gctx, c, "meal-plans", &plans) })
	if err := g.Wait(); err != nil {
		return domain.ReferenceData{}, err
	}

	ref := domain.ReferenceData{
		Hotels:         make([]domain.Hotel, 0, len(hotels)),
		RoomTypes:      make([]domain.RoomType, 0, len(rooms)),
		OccupancyTypes: make([]domain.OccupancyType, 0, len(occs)),
		MealPlans:      make([]domain.MealPlan, 0, len(plans)),
	}
	for _, h := range hotels {
		ref.Hotels = append(ref.Hotels, domain.Hotel{ID: h.ID, Name: h.Name, Location: h.Location, City: h.City, Country: h.Country})
	}
	for _, r := range rooms {
		ref.RoomTypes = append(ref.RoomTypes, domain.RoomType{ID: r.ID, Name: r.Name})
	}
	for _, o := range occs {
		ref.OccupancyTypes = append(ref.OccupancyTypes, domain.OccupancyType{ID: o.ID, Name: o.Name, MaxGuests: o.MaxGuests})
	}
	for _, m := range plans {
		ref.MealPlans = append(ref.MealPlans, domain.MealPlan{ID: m.ID, Code: m.Code, Name: m.Name})
	}
	return ref, nil
}

// list tries the versioned path first, then the legacy unversioned one.
func list[T any](ctx context.Context, c *Client, resource string, out *[]T) error {
	candidates := []string{
		fmt.Sprintf("%s/reference/%s", c.base, resource), // preferred
		fmt.Sprintf("%s/%s", c.base, resource),           // legacy
	}
	var env envelope[T]
	if err := c.getFirst(ctx, resource, candidates, &env); err != nil {
		return fmt.Errorf("catalog %s: %w", resource, err)
	}
	*out = env.Data
	return nil
}

// ---- Internals ----

var (
	ErrNotFound     = errors.New("catalog: not found")
	ErrUnauthorized = errors.New("catalog: unauthorized")
	ErrForbidden    = errors.New("catalog: forbidden")
)

func (c *Client) getFirst(ctx context.Context, endpoint string, urls []string, out any) error {
	var last error
	for _, u := range urls {
		if err := c.get(ctx, endpoint, u, out); err != nil {
			if errors.Is(err, ErrNotFound) {
				last = err
				continue // try next pattern
			}
			return err // non-404: stop early
		}
		return nil
	}
	if last != nil {
		return last
	}
	return errors.New("no candidate URL succeeded")
}

// get performs a GET with retries and JSON decode into out. Every attempt, retries
// included, takes a limiter token. Retries on 429 and transient 5xx, honoring Retry-After.
func (c *Client) get(ctx context.Context, endpoint, url string, out any) error {
	var lastErr error
	for i := 0; i < 4; i++ {
		if err := c.rl.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-API-Key", c.key)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "hotel-pricing/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal(service, endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal(service, endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decode %s: %w", endpoint, err)
			}
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
