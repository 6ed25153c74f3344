package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"hotel_pricing/internal/domain"
)

func ptr[T any](v T) *T { return &v }

// reference set shared by the pipeline tests
func testReference() domain.ReferenceData {
	return domain.ReferenceData{
		Hotels: []domain.Hotel{
			{ID: 1, Name: "Lotus Inn", Location: "Goa"},
			{ID: 2, Name: "Harbor View", Location: "Kochi"},
			{ID: 3, Name: "Harbor View", Location: "Mumbai"},
		},
		RoomTypes: []domain.RoomType{
			{ID: 10, Name: "Deluxe"},
			{ID: 11, Name: "Garden Suite"},
		},
		OccupancyTypes: []domain.OccupancyType{
			{ID: 20, Name: "Single", MaxGuests: ptr(1)},
			{ID: 21, Name: "Double", MaxGuests: ptr(2)},
		},
		MealPlans: []domain.MealPlan{
			{ID: 30, Code: "MAP", Name: "Modified American Plan"},
			{ID: 31, Code: "CP", Name: "Continental Plan"},
		},
	}
}

// ---- fakes ----

type fakeRefs struct {
	ref   domain.ReferenceData
	err   error
	calls int
}

func (f *fakeRefs) LoadReferenceData(ctx context.Context) (domain.ReferenceData, error) {
	f.calls++
	return f.ref, f.err
}

// memRepo is an in-memory pricing store.
type memRepo struct {
	mu      sync.Mutex
	rows    map[int64]domain.Pricing
	nextID  int64
	finds   int
	creates int
	updates int

	findErr   error
	createErr error
	// failAfter makes the n-th write (1-based) fail with createErr; 0 disables.
	failAfter int
	writes    int
}

func newMemRepo() *memRepo { return &memRepo{rows: map[int64]domain.Pricing{}} }

func (m *memRepo) FindByCombinations(ctx context.Context, keys []domain.CombinationKey) ([]domain.Pricing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	if m.findErr != nil {
		return nil, m.findErr
	}
	want := map[domain.CombinationKey]bool{}
	for _, k := range keys {
		want[k] = true
	}
	var out []domain.Pricing
	for id := int64(1); id <= m.nextID; id++ {
		if p, ok := m.rows[id]; ok && want[p.Key()] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) CreatePricing(ctx context.Context, p domain.Pricing) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr(); err != nil {
		return 0, err
	}
	m.creates++
	m.nextID++
	p.ID = m.nextID
	m.rows[p.ID] = p
	return p.ID, nil
}

func (m *memRepo) UpdatePricing(ctx context.Context, id int64, price decimal.Decimal, isActive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr(); err != nil {
		return err
	}
	p, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.updates++
	p.Price, p.IsActive = price, isActive
	m.rows[id] = p
	return nil
}

func (m *memRepo) writeErr() error {
	m.writes++
	if m.failAfter > 0 && m.writes >= m.failAfter {
		return m.createErr
	}
	if m.failAfter == 0 && m.createErr != nil {
		return m.createErr
	}
	return nil
}

func (m *memRepo) seed(p domain.Pricing) int64 {
	m.nextID++
	p.ID = m.nextID
	m.rows[p.ID] = p
	return p.ID
}

// jsonCache stores values the way the Redis adapter does, as JSON.
type jsonCache struct {
	store  map[string][]byte
	dels   []string
	getErr error
	delErr error
	// delCtxErrs records the context state seen by each Del
	delCtxErrs []error
}

func (c *jsonCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.getErr != nil {
		return false, c.getErr
	}
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *jsonCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *jsonCache) Del(ctx context.Context, key string) error {
	c.dels = append(c.dels, key)
	c.delCtxErrs = append(c.delCtxErrs, ctx.Err())
	if c.delErr != nil {
		return c.delErr
	}
	delete(c.store, key)
	return nil
}

type allowRoles map[string]bool

func (a allowRoles) Allow(ctx context.Context, p domain.Principal, act domain.Action) bool {
	return a[p.Role]
}

var errBoom = errors.New("boom")
