package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process configuration. Zero values for the external
// backends (postgres, redis, kafka, s3, engine URLs) mean the in-memory
// implementations are used, which keeps dev and tests self-contained.
type Config struct {
	Addr string

	PostgresDSN  string
	RedisURL     string
	KafkaBrokers string
	AuditTopic   string

	EvidenceBucket string

	OrderServiceURL    string
	OCREngineURL       string
	BiometricEngineURL string

	SessionTTL         time.Duration
	RequirementTTL     time.Duration
	PrescriberCacheTTL time.Duration
}

// Defaults the rest of the system depends on.
const (
	DefaultSessionTTL         = 30 * time.Minute
	DefaultRequirementTTL     = 5 * time.Minute
	DefaultPrescriberCacheTTL = 5 * time.Minute
)

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:               envOr("VERITY_ADDR", ":8080"),
		PostgresDSN:        os.Getenv("VERITY_POSTGRES_DSN"),
		RedisURL:           os.Getenv("VERITY_REDIS_URL"),
		KafkaBrokers:       os.Getenv("VERITY_KAFKA_BROKERS"),
		AuditTopic:         envOr("VERITY_AUDIT_TOPIC", "verity.audit"),
		EvidenceBucket:     os.Getenv("VERITY_EVIDENCE_BUCKET"),
		OrderServiceURL:    os.Getenv("VERITY_ORDER_SERVICE_URL"),
		OCREngineURL:       os.Getenv("VERITY_OCR_ENGINE_URL"),
		BiometricEngineURL: os.Getenv("VERITY_BIOMETRIC_ENGINE_URL"),
		SessionTTL:         envDurationOr("VERITY_SESSION_TTL", DefaultSessionTTL),
		RequirementTTL:     envDurationOr("VERITY_REQUIREMENT_TTL", DefaultRequirementTTL),
		PrescriberCacheTTL: envDurationOr("VERITY_PRESCRIBER_CACHE_TTL", DefaultPrescriberCacheTTL),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
