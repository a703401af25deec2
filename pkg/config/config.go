package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds process configuration read from the environment.
type Config struct {
	LogLevel        string
	DatabaseURL     string // empty selects the embedded sqlite store
	DataDir         string
	CatalogPath     string
	DocumentRoot    string // directory of saved pages; empty selects HTTP
	DocumentBaseURL string
	FetchRPS        float64
	RedisAddr       string // empty selects the in-memory cache
	CacheTTL        time.Duration
	OTelEnabled     bool
	OTLPEndpoint    string
	ProfilePath     string
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	baseURL := os.Getenv("DOCUMENT_BASE_URL")
	if baseURL == "" {
		baseURL = "https://programsandcourses.anu.edu.au"
	}

	rps := 2.0
	if v, err := strconv.ParseFloat(os.Getenv("FETCH_RPS"), 64); err == nil && v > 0 {
		rps = v
	}

	ttl := 24 * time.Hour
	if v, err := time.ParseDuration(os.Getenv("CACHE_TTL")); err == nil && v > 0 {
		ttl = v
	}

	return &Config{
		LogLevel:        logLevel,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DataDir:         dataDir,
		CatalogPath:     os.Getenv("CATALOG_PATH"),
		DocumentRoot:    os.Getenv("DOCUMENT_ROOT"),
		DocumentBaseURL: baseURL,
		FetchRPS:        rps,
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		CacheTTL:        ttl,
		OTelEnabled:     os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ProfilePath:     os.Getenv("PROFILE_PATH"),
	}
}

// LiteMode reports whether no external database is configured.
func (c *Config) LiteMode() bool { return c.DatabaseURL == "" }
