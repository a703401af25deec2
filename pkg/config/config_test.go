package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Mindburn-Labs/degreeplan/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"LOG_LEVEL", "DATABASE_URL", "DATA_DIR", "CATALOG_PATH", "DOCUMENT_ROOT",
		"DOCUMENT_BASE_URL", "FETCH_RPS", "REDIS_ADDR", "CACHE_TTL", "OTEL_ENABLED",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "PROFILE_PATH",
	} {
		t.Setenv(key, "")
	}

	cfg := config.Load()

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.True(t, cfg.LiteMode())
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "https://programsandcourses.anu.edu.au", cfg.DocumentBaseURL)
	assert.Equal(t, 2.0, cfg.FetchRPS)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.False(t, cfg.OTelEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("DATABASE_URL", "postgres://planner@db:5432/catalog")
	t.Setenv("DATA_DIR", "/var/lib/degreeplan")
	t.Setenv("DOCUMENT_ROOT", "/srv/pages")
	t.Setenv("FETCH_RPS", "0.5")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CACHE_TTL", "90m")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg := config.Load()

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.False(t, cfg.LiteMode())
	assert.Equal(t, "/var/lib/degreeplan", cfg.DataDir)
	assert.Equal(t, "/srv/pages", cfg.DocumentRoot)
	assert.Equal(t, 0.5, cfg.FetchRPS)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 90*time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.OTelEnabled)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
}

func TestLoad_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("FETCH_RPS", "fast")
	t.Setenv("CACHE_TTL", "-1h")

	cfg := config.Load()

	assert.Equal(t, 2.0, cfg.FetchRPS)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
}
