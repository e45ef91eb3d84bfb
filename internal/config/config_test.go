package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Empty(t, cfg.NATSURL)
	assert.Zero(t, cfg.DefaultAgencyID)
	assert.Equal(t, 10*time.Second, cfg.TypingTimeout)
	assert.Equal(t, 10*time.Second, cfg.TypingSweepInterval)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("NATS_URL", "nats://nats:4222")
	t.Setenv("DEFAULT_AGENCY_ID", "42")
	t.Setenv("TYPING_TIMEOUT", "3s")
	t.Setenv("WS_MAX_MESSAGE_SIZE", "2048")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.agency.com, ,https://admin.agency.com")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("LOG_FORMAT", "console")

	cfg := Load()

	assert.Equal(t, "9000", cfg.ServerPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "nats://nats:4222", cfg.NATSURL)
	assert.Equal(t, int64(42), cfg.DefaultAgencyID)
	assert.Equal(t, 3*time.Second, cfg.TypingTimeout)
	assert.Equal(t, int64(2048), cfg.WSMaxMessageSize)
	assert.Equal(t, []string{"https://app.agency.com", "https://admin.agency.com"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_REQUESTS", "lots")
	t.Setenv("RATE_LIMIT_WINDOW", "soon")
	t.Setenv("DEFAULT_AGENCY_ID", "x")

	cfg := Load()

	assert.Equal(t, 120, cfg.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Zero(t, cfg.DefaultAgencyID)
}
