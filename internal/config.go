package internal

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by the *_PROVIDER and RATE_LIMIT_BACKEND variables.
const (
	ProviderPostgres = "postgres"
	ProviderMemory   = "memory"
	ProviderR2       = "r2"
	ProviderRedis    = "redis"
)

// minTokenSecretLength is the shortest TOKEN_SECRET accepted outside development.
const minTokenSecretLength = 32

// devTokenSecret signs ID tokens in development when TOKEN_SECRET is unset.
const devTokenSecret = "forgea-development-token-secret-change-me"

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Account email derived from the student ID
	AccountEmailDomain string

	// Backends
	IdentityProvider string // "postgres" or "memory"
	StoreProvider    string // "postgres", "r2" or "memory"

	// R2 Storage (STORE_PROVIDER=r2)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2Endpoint        string // Optional; derived from the account ID when empty

	// ID tokens
	TokenSecret string
	TokenTTL    time.Duration

	// Sign-in rate limiting
	RateLimitBackend  string // "memory" or "redis"
	RedisURL          string
	SignInMaxAttempts int
	SignInWindow      time.Duration
	SignUpMaxAttempts int
	SignUpWindow      time.Duration

	// Proxies whose X-Forwarded-For is believed. Empty trusts none.
	TrustedProxies []string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string

	// UI theme: "dark" or "light"
	Theme string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		AccountEmailDomain: getEnv("ACCOUNT_EMAIL_DOMAIN", "forgea.com"),

		IdentityProvider: strings.ToLower(getEnv("IDENTITY_PROVIDER", ProviderPostgres)),
		StoreProvider:    strings.ToLower(getEnv("STORE_PROVIDER", ProviderPostgres)),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2Endpoint:        getEnv("R2_ENDPOINT", ""),

		TokenSecret: getEnv("TOKEN_SECRET", ""),
		TokenTTL:    getEnvDuration("TOKEN_TTL", 24*time.Hour),

		RateLimitBackend:  strings.ToLower(getEnv("RATE_LIMIT_BACKEND", ProviderMemory)),
		RedisURL:          getEnv("REDIS_URL", ""),
		SignInMaxAttempts: getEnvInt("SIGNIN_MAX_ATTEMPTS", 5),
		SignInWindow:      getEnvDuration("SIGNIN_WINDOW", 15*time.Minute),
		SignUpMaxAttempts: getEnvInt("SIGNUP_MAX_ATTEMPTS", 10),
		SignUpWindow:      getEnvDuration("SIGNUP_WINDOW", time.Hour),

		TrustedProxies: getEnvList("TRUSTED_PROXIES"),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),

		Theme: strings.ToLower(getEnv("THEME", "dark")),
	}

	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDevelopment reports whether ENV is "development".
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// NeedsDatabase reports whether any backend uses Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.IdentityProvider == ProviderPostgres || c.StoreProvider == ProviderPostgres
}

func (c *Config) validate() error {
	switch c.IdentityProvider {
	case ProviderPostgres, ProviderMemory:
	default:
		return fmt.Errorf("IDENTITY_PROVIDER must be either 'postgres' or 'memory', got: %s", c.IdentityProvider)
	}

	switch c.StoreProvider {
	case ProviderPostgres, ProviderMemory:
	case ProviderR2:
		if c.R2AccountID == "" && c.R2Endpoint == "" {
			return fmt.Errorf("R2_ACCOUNT_ID or R2_ENDPOINT is required when STORE_PROVIDER is 'r2'")
		}
		if c.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORE_PROVIDER is 'r2'")
		}
		if c.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORE_PROVIDER is 'r2'")
		}
		if c.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORE_PROVIDER is 'r2'")
		}
	default:
		return fmt.Errorf("STORE_PROVIDER must be one of 'postgres', 'r2' or 'memory', got: %s", c.StoreProvider)
	}

	// Required
	if c.NeedsDatabase() && c.DatabaseUrl == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch c.RateLimitBackend {
	case ProviderMemory:
	case ProviderRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when RATE_LIMIT_BACKEND is 'redis'")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be either 'memory' or 'redis', got: %s", c.RateLimitBackend)
	}

	if c.SignInMaxAttempts < 1 || c.SignUpMaxAttempts < 1 {
		return fmt.Errorf("SIGNIN_MAX_ATTEMPTS and SIGNUP_MAX_ATTEMPTS must be at least 1")
	}

	if c.SignInWindow <= 0 || c.SignUpWindow <= 0 {
		return fmt.Errorf("SIGNIN_WINDOW and SIGNUP_WINDOW must be positive durations")
	}

	for _, proxy := range c.TrustedProxies {
		if !validProxy(proxy) {
			return fmt.Errorf("TRUSTED_PROXIES entry is not an IP address or CIDR: %s", proxy)
		}
	}

	if c.TokenSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("TOKEN_SECRET is required")
		}
		c.TokenSecret = devTokenSecret
	} else if !c.IsDevelopment() && len(c.TokenSecret) < minTokenSecretLength {
		return fmt.Errorf("TOKEN_SECRET must be at least %d characters", minTokenSecretLength)
	}

	if c.Theme != "dark" && c.Theme != "light" {
		return fmt.Errorf("THEME must be either 'dark' or 'light', got: %s", c.Theme)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validProxy(s string) bool {
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
