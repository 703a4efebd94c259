package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/backend-taxcalc/internal/taxes"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	CurrencyPrecision int32
	FloatPrecision    int32
	ResultCacheTTL    time.Duration
	IdempotencyTTL    time.Duration

	RateLimitPerMinute int
	BodyLimitBytes     int64
	LockTTL            time.Duration
	LockRetryBackoff   time.Duration
	WorkerConcurrency  int

	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration

	LogFormat string
	LogLevel  string

	TracingEnabled      bool
	OTLPEndpoint        string
	ServiceName         string
	TraceSampleRatio    float64
	MetricsEnabled      bool
	HTTPDurationBuckets string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:              valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:         strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:            strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins:  splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyPrecision:   int32(parseInt(k.String("CALC_CURRENCY_PRECISION"), 2)),
		FloatPrecision:      int32(parseInt(k.String("CALC_FLOAT_PRECISION"), 3)),
		ResultCacheTTL:      parseDuration(k.String("CALC_RESULT_CACHE_TTL"), "10m"),
		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimitPerMinute:  parseInt(k.String("RATE_LIMIT_PER_MINUTE"), 120),
		BodyLimitBytes:      int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		LockTTL:             parseDuration(k.String("LOCK_TTL"), "30s"),
		LockRetryBackoff:    parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),
		WorkerConcurrency:   parseInt(k.String("WORKER_CONCURRENCY"), 10),
		BreakerMinRequests:  parseInt(k.String("CIRCUIT_TEMPLATES_MIN_REQ"), 5),
		BreakerFailureRatio: parseFloat(k.String("CIRCUIT_TEMPLATES_FAILURE_RATE"), 0.5),
		BreakerOpenFor:      parseDuration(k.String("CIRCUIT_TEMPLATES_OPEN_FOR"), "30s"),
		LogFormat:           valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:            valueOrDefault(k.String("LOG_LEVEL"), "info"),
		TracingEnabled:      parseBool(k.String("OBS_TRACING_ENABLED")),
		OTLPEndpoint:        strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		ServiceName:         valueOrDefault(k.String("OTEL_SERVICE_NAME"), "taxcalc-api"),
		TraceSampleRatio:    parseFloat(k.String("OBS_TRACE_SAMPLE_RATIO"), 1),
		MetricsEnabled:      parseBoolDefault(k.String("OBS_METRICS_ENABLED"), true),
		HTTPDurationBuckets: valueOrDefault(k.String("OBS_HTTP_DURATION_BUCKETS"),
			"5,10,25,50,100,250,500,1000,2500"),
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.CurrencyPrecision < 0 || cfg.FloatPrecision < 0 {
		return nil, errors.New("CALC_CURRENCY_PRECISION and CALC_FLOAT_PRECISION must not be negative")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// Precision returns the rounding table used by the calculation engine.
func (c *Config) Precision() taxes.PrecisionTable {
	return taxes.PrecisionTable{Currency: c.CurrencyPrecision, Float: c.FloatPrecision}
}

// TemplatesEnabled reports whether a database is configured for tax templates.
func (c *Config) TemplatesEnabled() bool {
	return c.DatabaseURL != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
