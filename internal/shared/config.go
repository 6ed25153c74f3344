package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv         string
	HTTPAddr       string
	MetricsAddr    string
	RequestTimeout time.Duration
	MySQLDSN       string
	RedisAddr      string
	RedisDB        int
	RedisPass      string
	// CatalogBase switches reference data to the content API when set.
	CatalogBase    string
	CatalogKey     string
	CatalogRPS     int
	Workers        int
	MaxUploadBytes int64
	ImportTimeout  time.Duration
	CacheTTL       time.Duration
	ReferenceTTL   time.Duration
	// APIKeys is the raw "key:role,key:role" list.
	APIKeys     string
	ImportRoles []string
}

// Load reads the environment, after a .env file in the working directory when one exists.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg(".env loaded")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not a number, using default")
		}
		return def
	}
	c := Config{
		AppEnv:         env("APP_ENV", "prod"),
		HTTPAddr:       env("HTTP_ADDR", ":8080"),
		MetricsAddr:    env("METRICS_ADDR", ":9100"),
		RequestTimeout: time.Duration(atoi("HTTP_TIMEOUT_SECONDS", 60)) * time.Second,
		MySQLDSN:       env("MYSQL_DSN", "root:root@tcp(localhost:3306)/pricing?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:      env("REDIS_ADDR", "localhost:6379"),
		RedisPass:      env("REDIS_PASSWORD", ""),
		RedisDB:        atoi("REDIS_DB", 0),
		CatalogBase:    env("CATALOG_BASE_URL", ""),
		CatalogKey:     env("CATALOG_API_KEY", ""),
		CatalogRPS:     atoi("CATALOG_RPS", 5),
		Workers:        atoi("IMPORT_WORKERS", 4),
		MaxUploadBytes: int64(atoi("IMPORT_MAX_BYTES", 10<<20)),
		ImportTimeout:  time.Duration(atoi("IMPORT_TIMEOUT_SECONDS", 600)) * time.Second,
		CacheTTL:       time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		ReferenceTTL:   time.Duration(atoi("REFERENCE_CACHE_TTL_SECONDS", 300)) * time.Second,
		APIKeys:        env("API_KEYS", ""),
		ImportRoles:    splitCSV(env("IMPORT_ROLES", "admin,manager")),
	}
	if c.APIKeys == "" {
		log.Warn().Msg("API_KEYS is empty; every API request will be rejected")
	}
	return c
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.AppEnv, validation.In("dev", "development", "staging", "prod", "production")),
		validation.Field(&c.HTTPAddr, validation.Required),
		validation.Field(&c.MySQLDSN, validation.Required),
		validation.Field(&c.RedisAddr, validation.Required),
		validation.Field(&c.RedisDB, validation.Min(0), validation.Max(15)),
		validation.Field(&c.CatalogBase, is.URL),
		validation.Field(&c.CatalogKey, validation.When(c.CatalogBase != "", validation.Required.Error("required when CATALOG_BASE_URL is set"))),
		validation.Field(&c.CatalogRPS, validation.Min(1)),
		validation.Field(&c.Workers, validation.Min(1), validation.Max(64)),
		validation.Field(&c.MaxUploadBytes, validation.Min(int64(1024))),
		validation.Field(&c.RequestTimeout, validation.Min(time.Second)),
		validation.Field(&c.ImportTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.ImportRoles, validation.Required),
	)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
