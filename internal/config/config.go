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
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	SessionSecret      string
	CORSAllowedOrigins []string
	AdminKeyHash       string
	DeliveryBaseURL    string
	DeliveryAPIKey     string
	DeliveryTimeout    time.Duration
	FlatShippingFee    int64
	LoyaltyEarnRateBps int32
	SessionTokenTTL    time.Duration
	CartTTL            time.Duration
	CatalogCacheTTL    time.Duration
	QuoteRatePerMinute int64
	OTLPEndpoint       string
	OrderWebhookURL    string
	OrderWebhookSecret string
	AuditEnabled       bool
	AuditSampleRate    float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		SessionSecret:      k.String("SESSION_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		AdminKeyHash:       k.String("ADMIN_KEY_HASH"),
		DeliveryBaseURL:    strings.TrimSpace(k.String("DELIVERY_BASE_URL")),
		DeliveryAPIKey:     k.String("DELIVERY_API_KEY"),
		DeliveryTimeout:    parseDuration(k.String("DELIVERY_TIMEOUT"), "5s"),
		FlatShippingFee:    parseInt64(k.String("FLAT_SHIPPING_FEE"), 15000),
		LoyaltyEarnRateBps: int32(parseInt64(k.String("LOYALTY_EARN_RATE_BPS"), 0)),
		SessionTokenTTL:    parseDuration(k.String("SESSION_TOKEN_TTL"), "720h"),
		CartTTL:            parseDuration(k.String("CART_TTL"), "168h"),
		CatalogCacheTTL:    parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		QuoteRatePerMinute: parseInt64(k.String("QUOTE_RATE_PER_MINUTE"), 60),
		OTLPEndpoint:       strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OrderWebhookURL:    strings.TrimSpace(k.String("ORDER_WEBHOOK_URL")),
		OrderWebhookSecret: k.String("ORDER_WEBHOOK_SECRET"),
		AuditEnabled:       parseBool(k.String("AUDIT_ENABLED"), false),
		AuditSampleRate:    parseFloat(k.String("AUDIT_SAMPLE_RATE"), 1),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET is required")
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

func parseInt64(value string, fallback int64) int64 {
	base := strings.TrimSpace(value)
	if base == "" {
		return fallback
	}
	n, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(value string, fallback bool) bool {
	base := strings.TrimSpace(value)
	if base == "" {
		return fallback
	}
	b, err := strconv.ParseBool(base)
	if err != nil {
		return fallback
	}
	return b
}

func parseFloat(value string, fallback float64) float64 {
	base := strings.TrimSpace(value)
	if base == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(base, 64)
	if err != nil {
		return fallback
	}
	return f
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
