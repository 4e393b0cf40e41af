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
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv            string
	OrderServiceURL   string
	PaymentServiceURL string
	ProductServiceURL string
	RedisURL          string
	PriceCacheTTL     time.Duration
	CachePrefix       string

	RefundAllowedGateways []string
	RefundLockEnabled     bool
	LockTTL               time.Duration
	LockRetryBackoff      time.Duration

	OutboundTimeout     time.Duration
	RetryBase           time.Duration
	RetryMaxAttempts    int
	RetryJitterPercent  float64
	CircuitMinRequests  int
	CircuitFailureRatio float64
	CircuitOpenFor      time.Duration

	LogFormat         string
	LogLevel          string
	MetricsNamespace  string
	OTelServiceName   string
	OTelExporter      string
	OTelEndpoint      string
	OTelSamplingRatio float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:            valueOrDefault(k.String("APP_ENV"), "development"),
		OrderServiceURL:   strings.TrimRight(strings.TrimSpace(k.String("ORDER_SERVICE_URL")), "/"),
		PaymentServiceURL: strings.TrimRight(strings.TrimSpace(k.String("PAYMENT_SERVICE_URL")), "/"),
		ProductServiceURL: strings.TrimRight(strings.TrimSpace(k.String("PRODUCT_SERVICE_URL")), "/"),
		RedisURL:          strings.TrimSpace(k.String("REDIS_URL")),
		PriceCacheTTL:     parseDuration(k.String("PRICE_CACHE_TTL"), "5m"),
		CachePrefix:       valueOrDefault(k.String("CACHE_PREFIX"), "toko-refunds"),

		RefundAllowedGateways: splitAndTrim(valueOrDefault(k.String("REFUND_ALLOWED_GATEWAYS"), "online-paytrail")),
		RefundLockEnabled:     parseBool(k.String("REFUND_LOCK_ENABLED")),
		LockTTL:               parseDuration(k.String("LOCK_TTL"), "30s"),
		LockRetryBackoff:      parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),

		OutboundTimeout:     parseDuration(k.String("OUTBOUND_TIMEOUT"), "10s"),
		RetryBase:           parseDuration(k.String("RETRY_BASE"), "100ms"),
		RetryMaxAttempts:    parseInt(k.String("RETRY_MAX_ATTEMPTS"), 2),
		RetryJitterPercent:  parseFloat(k.String("RETRY_JITTER_PERCENT"), 0.2),
		CircuitMinRequests:  parseInt(k.String("CIRCUIT_MIN_REQUESTS"), 10),
		CircuitFailureRatio: parseFloat(k.String("CIRCUIT_FAILURE_RATIO"), 0.5),
		CircuitOpenFor:      parseDuration(k.String("CIRCUIT_OPEN_FOR"), "30s"),

		LogFormat:         valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:          valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace:  valueOrDefault(k.String("METRICS_NAMESPACE"), "toko"),
		OTelServiceName:   valueOrDefault(k.String("OTEL_SERVICE_NAME"), "toko-refunds"),
		OTelExporter:      valueOrDefault(k.String("OTEL_TRACES_EXPORTER"), "none"),
		OTelEndpoint:      strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTelSamplingRatio: parseFloat(k.String("OTEL_TRACES_SAMPLER_RATIO"), 1),
	}

	if cfg.OrderServiceURL == "" {
		return nil, errors.New("ORDER_SERVICE_URL is required")
	}
	if cfg.PaymentServiceURL == "" {
		return nil, errors.New("PAYMENT_SERVICE_URL is required")
	}
	if cfg.RefundLockEnabled && cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required when REFUND_LOCK_ENABLED is set")
	}

	return cfg, nil
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
		return strings.TrimSpace(value)
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
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
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
