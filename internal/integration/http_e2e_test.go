//go:build integration || !unit

package integration

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"

	"hotel_pricing/internal/adapters/authz"
	server "hotel_pricing/internal/adapters/http_server"
	redisad "hotel_pricing/internal/adapters/redis"
	"hotel_pricing/internal/app"
	"hotel_pricing/internal/domain"
	mysqlrepo "hotel_pricing/internal/storage/mysql"
)

// ---------- helpers ----------

func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "migrations")
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

// workbook builds a one-row sheet with two occupancy columns.
func workbook(t *testing.T, start, end time.Time, single, double int) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", "Pricing"); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	rows := [][]any{
		{"Hotel Name", "Room Type", "Meal Plan", "Start Date", "End Date", "Active", "Single", "Double"},
		{"Lotus Inn", "Deluxe", "MAP", start, end, "yes", single, double},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Pricing", cell, &r); err != nil {
			t.Fatalf("write row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

type importBody struct {
	Success  bool                 `json:"success"`
	Code     string               `json:"code"`
	Summary  domain.ImportSummary `json:"summary"`
	Warnings []string             `json:"warnings"`
}

func postImport(t *testing.T, url string, name string, data []byte) (int, importBody) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", name)
	_, _ = fw.Write(data)
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, url+"/v1/pricing/imports", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-API-Key", "k-admin")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer res.Body.Close()
	var body importBody
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return res.StatusCode, body
}

// ---------- the test ----------
func TestHTTP_EndToEnd_PricingImport(t *testing.T) {
	// Start isolated MySQL container
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env:        []string{"MYSQL_ROOT_PASSWORD=root", "MYSQL_DATABASE=pricing"},
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

	if _, err := db.Exec(`
INSERT INTO hotels (id, name, location) VALUES (1, 'Lotus Inn', 'Goa');
INSERT INTO room_types (id, name) VALUES (10, 'Deluxe');
INSERT INTO occupancy_types (id, name) VALUES (20, 'Single'), (21, 'Double');
INSERT INTO meal_plans (id, code, name) VALUES (30, 'MAP', 'Modified American Plan');`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// wire the real stack
	mr := miniredis.RunT(t)
	cache := redisad.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "e2e:")
	repo := mysqlrepo.New(db)
	gate := authz.New(map[string]string{"k-admin": "admin"}, []string{"admin"})
	imports := app.NewImportService(repo, cache, gate, app.NewReconciler(repo, 4), time.Minute)
	queries := app.NewQueryService(repo, cache, gate, time.Minute)

	srv := server.New(10 * time.Second)
	srv.MountHandlers(&server.Handlers{Imports: imports, Q: queries}, gate)
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	jan1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	jan31 := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	file := workbook(t, jan1, jan31, 2000, 2800)

	// first upload creates one band per occupancy column
	status, body := postImport(t, ts.URL, "lotus.xlsx", file)
	if status != http.StatusOK || body.Summary.Created != 2 || body.Summary.Updated != 0 || body.Summary.Processed != 2 || len(body.Warnings) != 0 {
		t.Fatalf("first import: %d %+v", status, body)
	}

	// warm the read cache, then check the next import invalidates it
	get := func() domain.HotelPricingView {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/hotels/1/pricing", nil)
		req.Header.Set("X-API-Key", "k-admin")
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer res.Body.Close()
		var v domain.HotelPricingView
		if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return v
	}
	if v := get(); len(v.Bands) != 2 {
		t.Fatalf("want 2 bands, got %+v", v)
	}

	// same file again with a new price updates in place
	status, body = postImport(t, ts.URL, "lotus.xlsx", workbook(t, jan1, jan31, 2100, 2800))
	if status != http.StatusOK || body.Summary.Created != 0 || body.Summary.Updated != 2 {
		t.Fatalf("second import: %d %+v", status, body)
	}
	v := get()
	if len(v.Bands) != 2 {
		t.Fatalf("re-run created bands: %+v", v)
	}
	for _, b := range v.Bands {
		if b.OccupancyType == "Single" && b.Price.IntPart() != 2100 {
			t.Fatalf("stale cached price: %+v", b)
		}
	}

	// overlapping range creates a band and warns
	status, body = postImport(t, ts.URL, "lotus-feb.xlsx",
		workbook(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), 2200, 3000))
	if status != http.StatusOK || body.Summary.Created != 2 || len(body.Warnings) != 2 {
		t.Fatalf("overlap import: %d %+v", status, body)
	}

	// a rejected file writes nothing
	var before int
	_ = db.QueryRow(`SELECT COUNT(*) FROM hotel_pricing`).Scan(&before)
	bad := []byte("hotel_name,room_type_name,start_date,end_date,Single\nNowhere,Deluxe,2025-03-01,2025-03-31,10\n")
	status, body = postImport(t, ts.URL, "bad.csv", bad)
	if status != http.StatusUnprocessableEntity || body.Code != "VALIDATION" {
		t.Fatalf("bad import: %d %+v", status, body)
	}
	var after int
	_ = db.QueryRow(`SELECT COUNT(*) FROM hotel_pricing`).Scan(&after)
	if before != after {
		t.Fatalf("rejected import wrote rows: %d -> %d", before, after)
	}
}
