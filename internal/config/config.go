package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string
	CRDBDSN      string
	MongoURI     string
	RedisAddr    string
	RabbitURL    string
	OTLPEndpoint string

	// HoldTTL bounds how long a seat stays HELD before the sweeper reclaims it.
	HoldTTL time.Duration
	// TokenSessionTTL is the active window stamped on token promotion.
	TokenSessionTTL time.Duration
	// MaxActiveTokens caps concurrently admitted sessions.
	MaxActiveTokens int
	// WaitPerSlot scales the advisory queue wait estimate.
	WaitPerSlot time.Duration
	// SweepInterval is the tick of the expiration/promotion sweeper.
	SweepInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:        envOr("HTTP_ADDR", ":8080"),
		CRDBDSN:         os.Getenv("CRDB_DSN"),
		MongoURI:        os.Getenv("MONGO_URI"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RabbitURL:       os.Getenv("RABBIT_URL"),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		HoldTTL:         durationOr("HOLD_TTL", 5*time.Minute),
		TokenSessionTTL: durationOr("TOKEN_SESSION_TTL", 10*time.Minute),
		MaxActiveTokens: intOr("MAX_ACTIVE_TOKENS", 50),
		WaitPerSlot:     durationOr("WAIT_PER_SLOT", 10*time.Second),
		SweepInterval:   durationOr("SWEEP_INTERVAL", time.Minute),
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func intOr(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
