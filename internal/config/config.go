// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Database settings
	DBDriver      string
	DatabaseURL   string
	DBMaxOpen     int
	DBMaxIdle     int
	DBAutoMigrate bool

	// NATS settings. An empty URL disables the event journal.
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret string

	// Chat routing. Zero routes first contact to the first admin.
	DefaultAgencyID int64

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Live connections
	WSPingPeriod        time.Duration
	WSPongWait          time.Duration
	WSWriteWait         time.Duration
	WSMaxMessageSize    int64
	TypingTimeout       time.Duration
	TypingSweepInterval time.Duration

	// CORS and websocket origin allow-list
	CORSAllowedOrigins []string

	// Logging
	LogLevel  string
	LogFormat string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; real environment wins.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),

		// Database
		DBDriver:      getEnv("DB_DRIVER", "postgres"),
		DatabaseURL:   getEnv("DATABASE_URL", "host=localhost user=postgres dbname=agency sslmode=disable"),
		DBMaxOpen:     getIntEnv("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdle:     getIntEnv("DB_MAX_IDLE_CONNS", 5),
		DBAutoMigrate: getBoolEnv("DB_AUTO_MIGRATE", true),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		DefaultAgencyID: getInt64Env("DEFAULT_AGENCY_ID", 0),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Live connections
		WSPingPeriod:        getDurationEnv("WS_PING_PERIOD", 54*time.Second),
		WSPongWait:          getDurationEnv("WS_PONG_WAIT", 60*time.Second),
		WSWriteWait:         getDurationEnv("WS_WRITE_WAIT", 10*time.Second),
		WSMaxMessageSize:    getInt64Env("WS_MAX_MESSAGE_SIZE", 64*1024),
		TypingTimeout:       getDurationEnv("TYPING_TIMEOUT", 10*time.Second),
		TypingSweepInterval: getDurationEnv("TYPING_SWEEP_INTERVAL", 10*time.Second),

		CORSAllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getListEnv splits a comma separated value, dropping blanks.
func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
