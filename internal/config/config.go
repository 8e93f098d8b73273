package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "KoboPay"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultPaystackBaseURL = "https://api.paystack.co"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName                   string
	AppEnv                    string
	Port                      string
	LogLevel                  string
	DatabaseURL               string
	RedisURL                  string
	JWTSecret                 string
	PaystackSecretKey         string
	PaystackPreviousSecretKey string
	PaystackBaseURL           string
	ShutdownPeriod            time.Duration
	IdempotencyTTL            time.Duration
	DepositsPerMinute         int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:                   getEnv("APP_NAME", defaultAppName),
		AppEnv:                    getEnv("APP_ENV", defaultAppEnv),
		Port:                      getEnv("PORT", defaultPort),
		LogLevel:                  strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:               os.Getenv("DATABASE_URL"),
		RedisURL:                  os.Getenv("REDIS_URL"),
		JWTSecret:                 os.Getenv("JWT_SECRET"),
		PaystackSecretKey:         os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackPreviousSecretKey: os.Getenv("PAYSTACK_PREVIOUS_SECRET_KEY"),
		PaystackBaseURL:           getEnv("PAYSTACK_BASE_URL", defaultPaystackBaseURL),
		ShutdownPeriod:            defaultShutdownDelay,
		IdempotencyTTL:            defaultIdempotencyTTL,
		DepositsPerMinute:         10,
	}

	if v := os.Getenv("DEPOSITS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DEPOSITS_PER_MINUTE: %w", err)
		}
		cfg.DepositsPerMinute = n
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}

	if cfg.PaystackSecretKey == "" {
		return Config{}, fmt.Errorf("PAYSTACK_SECRET_KEY must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// WebhookSecrets returns every signing secret webhook deliveries may verify
// against, the current one first. The previous secret is included only while a
// rotation is in flight.
func (c Config) WebhookSecrets() [][]byte {
	secrets := [][]byte{[]byte(c.PaystackSecretKey)}
	if c.PaystackPreviousSecretKey != "" {
		secrets = append(secrets, []byte(c.PaystackPreviousSecretKey))
	}
	return secrets
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
