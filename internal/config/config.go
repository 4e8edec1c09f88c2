package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Observability
	OTLPEndpoint string

	// Supabase (ledger + scheduler tables via PostgREST)
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// JWT / session validation (tokens issued by the external auth service)
	JWTSecret string

	// Cron trigger endpoints. CronSecretHash (bcrypt) takes precedence
	// over the plain CronSecret when both are set.
	CronSecret     string
	CronSecretHash string

	// Engine tuning
	BatchLimit      int           // max entities loaded per batch run
	UpcomingHorizon time.Duration // notify obligations due within this window
	DriftEpsilon    float64       // tolerated |calculated-cached| on plan amounts
	NotifDedupTTL   time.Duration // suppression window for repeated notifications
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		JWTSecret: getEnv("JWT_SECRET", "fintrack-default-dev-secret-change-me"),

		CronSecret:     getEnv("CRON_SECRET", ""),
		CronSecretHash: getEnv("CRON_SECRET_HASH", ""),

		BatchLimit:      getEnvInt("BATCH_LIMIT", 500),
		UpcomingHorizon: getEnvDuration("UPCOMING_HORIZON", 72*time.Hour),
		DriftEpsilon:    getEnvFloat("DRIFT_EPSILON", 0.01),
		NotifDedupTTL:   getEnvDuration("NOTIF_DEDUP_TTL", 24*time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
