package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr       string
	CORSOrigin string
	AppEnv     string
	LogFile    string

	// Analysis Service
	AnalysisURL     string
	AnalysisAPIKey  string
	AnalysisTimeout time.Duration

	// Document store; empty disables it.
	DatabaseURL   string
	RunMigrations bool

	// Session cache; an empty RedisURL selects the in-memory storage.
	RedisURL        string
	CacheQuotaBytes int64

	MeiliURL       string
	MeiliMasterKey string

	MinRadius         float64
	MaxRadius         float64
	EdgeThreshold     float64
	NeighborLimit     int
	DefaultRatingUser string

	// ViewIdleTTL bounds how long an unused session view stays in memory.
	// It must outlast the Analysis timeout so a view is never dropped with
	// a rating persist in flight.
	ViewIdleTTL time.Duration
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		Addr:       ":8787",
		CORSOrigin: "*",
		AppEnv:     "development",

		AnalysisURL:     "http://localhost:8000",
		AnalysisTimeout: 30 * time.Second,

		RunMigrations: true,

		CacheQuotaBytes: 5 << 20,

		MinRadius:         2,
		MaxRadius:         15,
		EdgeThreshold:     0.15,
		NeighborLimit:     10,
		DefaultRatingUser: "webApp",

		ViewIdleTTL: 30 * time.Minute,
	}
}

// Load reads .env when present, then the environment.
func Load() Config {
	_ = godotenv.Load()
	d := Default()

	return Config{
		Addr:       getenv("API_ADDR", d.Addr),
		CORSOrigin: getenv("SIMSCORE_CORS_ORIGIN", d.CORSOrigin),
		AppEnv:     getenv("APP_ENV", d.AppEnv),
		LogFile:    getenv("LOG_FILE", d.LogFile),

		AnalysisURL:     strings.TrimRight(getenv("SIMSCORE_API", d.AnalysisURL), "/"),
		AnalysisAPIKey:  getenv("SIMSCORE_API_KEY", d.AnalysisAPIKey),
		AnalysisTimeout: time.Duration(getenvInt("SIMSCORE_TIMEOUT_SECONDS", int(d.AnalysisTimeout/time.Second))) * time.Second,

		DatabaseURL:   getenv("DATABASE_URL", d.DatabaseURL),
		RunMigrations: getenvBool("SIMSCORE_MIGRATIONS", d.RunMigrations),

		RedisURL:        getenv("REDIS_URL", d.RedisURL),
		CacheQuotaBytes: int64(getenvInt("CACHE_QUOTA_BYTES", int(d.CacheQuotaBytes))),

		MeiliURL:       getenv("MEILI_URL", d.MeiliURL),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", d.MeiliMasterKey),

		MinRadius:         getenvFloat("GEOMETRY_MIN_RADIUS", d.MinRadius),
		MaxRadius:         getenvFloat("GEOMETRY_MAX_RADIUS", d.MaxRadius),
		EdgeThreshold:     getenvFloat("GEOMETRY_EDGE_THRESHOLD", d.EdgeThreshold),
		NeighborLimit:     getenvInt("GEOMETRY_NEIGHBOR_LIMIT", d.NeighborLimit),
		DefaultRatingUser: getenv("RATING_USER_ID", d.DefaultRatingUser),

		ViewIdleTTL: time.Duration(getenvInt("SESSION_VIEW_TTL_MINUTES", int(d.ViewIdleTTL/time.Minute))) * time.Minute,
	}
}

func (c Config) Development() bool {
	return c.AppEnv == "development"
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
