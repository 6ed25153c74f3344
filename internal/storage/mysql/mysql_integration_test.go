//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/shopspring/decimal"

	"hotel_pricing/internal/domain"
	mysqlrepo "hotel_pricing/internal/storage/mysql"
)

// ---------- small helpers ----------
func pint64(i int64) *int64 { return &i }

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir()

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir %s: %v", dir, err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	// Start isolated MySQL; let Docker pick a free host port.
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=pricing",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/pricing?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		resource.GetPort("3306/tcp"))

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

func seedReference(t *testing.T, db *sql.DB) {
	t.Helper()
	for _, q := range []string{
		`INSERT INTO hotels (id, name, location, city) VALUES (1, 'Lotus Inn', 'Goa', 'Panaji'), (2, 'Harbor View', 'Kochi', NULL)`,
		`INSERT INTO room_types (id, name) VALUES (10, 'Deluxe')`,
		`INSERT INTO occupancy_types (id, name, max_guests) VALUES (20, 'Single', 1), (21, 'Double', NULL)`,
		`INSERT INTO meal_plans (id, code, name) VALUES (30, 'MAP', 'Modified American Plan')`,
	} {
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

// ---------- the test ----------
func TestRepo_MySQL_PricingLifecycle(t *testing.T) {
	db := startMySQL(t)
	seedReference(t, db)

	repo := mysqlrepo.New(db)
	ctx := context.Background()

	ref, err := repo.LoadReferenceData(ctx)
	if err != nil {
		t.Fatalf("LoadReferenceData: %v", err)
	}
	if len(ref.Hotels) != 2 || ref.Hotels[0].City == nil || ref.Hotels[1].City != nil {
		t.Fatalf("unexpected hotels: %+v", ref.Hotels)
	}
	if len(ref.OccupancyTypes) != 2 || *ref.OccupancyTypes[0].MaxGuests != 1 || ref.OccupancyTypes[1].MaxGuests != nil {
		t.Fatalf("unexpected occupancy types: %+v", ref.OccupancyTypes)
	}

	withPlan := domain.Pricing{
		HotelID: 1, RoomTypeID: 10, OccupancyTypeID: 20, MealPlanID: pint64(30),
		StartDate: day("2025-01-01"), EndDate: day("2025-01-31"),
		Price: decimal.RequireFromString("2000.50"), IsActive: true,
	}
	noPlan := withPlan
	noPlan.MealPlanID = nil
	noPlan.Price = decimal.NewFromInt(1700)

	id1, err := repo.CreatePricing(ctx, withPlan)
	if err != nil {
		t.Fatalf("CreatePricing: %v", err)
	}
	if _, err := repo.CreatePricing(ctx, noPlan); err != nil {
		t.Fatalf("CreatePricing (no plan): %v", err)
	}

	// only the no-plan band matches a key with MealPlanID 0
	got, err := repo.FindByCombinations(ctx, []domain.CombinationKey{noPlan.Key()})
	if err != nil {
		t.Fatalf("FindByCombinations: %v", err)
	}
	if len(got) != 1 || got[0].MealPlanID != nil || !got[0].Price.Equal(decimal.NewFromInt(1700)) {
		t.Fatalf("unexpected bands: %+v", got)
	}

	got, err = repo.FindByCombinations(ctx, []domain.CombinationKey{withPlan.Key(), noPlan.Key()})
	if err != nil {
		t.Fatalf("FindByCombinations: %v", err)
	}
	if len(got) != 2 || got[0].ID != id1 || !got[0].Range().Equal(withPlan.Range()) {
		t.Fatalf("unexpected bands: %+v", got)
	}

	if err := repo.UpdatePricing(ctx, id1, decimal.NewFromInt(2100), false); err != nil {
		t.Fatalf("UpdatePricing: %v", err)
	}
	// unchanged values still succeed
	if err := repo.UpdatePricing(ctx, id1, decimal.NewFromInt(2100), false); err != nil {
		t.Fatalf("UpdatePricing (same values): %v", err)
	}

	bands, err := repo.ListHotelPricing(ctx, 1)
	if err != nil {
		t.Fatalf("ListHotelPricing: %v", err)
	}
	if len(bands) != 2 {
		t.Fatalf("want 2 bands, got %+v", bands)
	}
	var updated *domain.PricingBand
	for i := range bands {
		if bands[i].ID == id1 {
			updated = &bands[i]
		}
	}
	if updated == nil || updated.IsActive || !updated.Price.Equal(decimal.NewFromInt(2100)) ||
		updated.MealPlanCode == nil || *updated.MealPlanCode != "MAP" || updated.RoomType != "Deluxe" {
		t.Fatalf("unexpected updated band: %+v", updated)
	}

	if _, err := repo.GetHotel(ctx, 99); err != domain.ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	h, err := repo.GetHotel(ctx, 1)
	if err != nil || h.Name != "Lotus Inn" || h.Location != "Goa" {
		t.Fatalf("GetHotel: %+v %v", h, err)
	}
}
