// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, Load returns an
// error and the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"newsdigest/internal/extractor"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// Config holds all runtime configuration for newsdigest.
type Config struct {
	Port     string
	LogLevel string

	StoreBackend  string
	DatabaseURL   string // postgres
	MongoURI      string // mongo
	MongoUser     string
	MongoPassword string
	MongoDatabase string

	RedisURL string        // empty disables the read cache and events
	CacheTTL time.Duration // read cache entry lifetime

	APIKey           string // webscraping.ai key
	ExtractorBaseURL string
	FetchWindow      extractor.Window
	FetchTimeout     time.Duration // per attempt
	SiteDelay        time.Duration // between consecutive sites
	SitesFile        string        // YAML site list; empty means the built-in list

	WriteConcurrency int
	RecentWindowDays int
	IngestSchedule   string  // cron spec; empty disables the built-in scheduler
	IngestOnStart    bool    // also run once when the scheduler starts
	IngestRatePerMin float64 // /ingest requests per minute per client
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getenv("PORT", "8080"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		StoreBackend:     getenv("STORE_BACKEND", BackendPostgres),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		MongoURI:         os.Getenv("MONGODB_URI"),
		MongoUser:        os.Getenv("MONGODB_USER"),
		MongoPassword:    os.Getenv("MONGODB_PASSWORD"),
		MongoDatabase:    getenv("MONGODB_DATABASE", "newsdigest"),
		RedisURL:         os.Getenv("REDIS_URL"),
		APIKey:           os.Getenv("WEBSCRAPING_API_KEY"),
		ExtractorBaseURL: getenv("WEBSCRAPING_BASE_URL", extractor.DefaultBaseURL),
		SitesFile:        os.Getenv("SITES_FILE"),
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("WEBSCRAPING_API_KEY is required")
	}

	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", BackendPostgres)
		}
	case BackendMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGODB_URI is required when STORE_BACKEND=%s", BackendMongo)
		}
	case BackendMemory:
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be one of %s, %s, %s; got %q",
			BackendPostgres, BackendMongo, BackendMemory, cfg.StoreBackend)
	}

	window, err := extractor.ParseWindow(os.Getenv("FETCH_WINDOW"))
	if err != nil {
		return nil, fmt.Errorf("FETCH_WINDOW: %w", err)
	}
	cfg.FetchWindow = window

	if cfg.CacheTTL, err = duration("CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = duration("FETCH_TIMEOUT", extractor.DefaultTimeout); err != nil {
		return nil, err
	}
	if cfg.SiteDelay, err = duration("SITE_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.WriteConcurrency, err = positiveInt("WRITE_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.RecentWindowDays, err = positiveInt("RECENT_WINDOW_DAYS", 10); err != nil {
		return nil, err
	}

	cfg.IngestRatePerMin = 6
	if s := os.Getenv("INGEST_RATE_PER_MIN"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("INGEST_RATE_PER_MIN must be a positive number, got %q", s)
		}
		cfg.IngestRatePerMin = v
	}

	// Set but empty disables the scheduler; unset means hourly.
	cfg.IngestSchedule = "@hourly"
	if s, ok := os.LookupEnv("INGEST_SCHEDULE"); ok {
		cfg.IngestSchedule = s
	}

	cfg.IngestOnStart = true
	if s := os.Getenv("INGEST_ON_START"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("INGEST_ON_START must be a boolean, got %q", s)
		}
		cfg.IngestOnStart = v
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration, got %q", key, s)
	}
	return d, nil
}

func positiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}
