package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Storage. DATABASE_URL selects Postgres, otherwise SQLITE_PATH selects
	// SQLite. With neither set loans live only in memory.
	DatabaseURL          string
	SQLitePath           string
	StorageCheckInterval time.Duration

	// Auth0 (optional, protects mutating routes when set)
	Auth0Domain   string
	Auth0Audience string

	// Server. PublicURLs are the base URLs clients reach the server on and
	// are listed as servers in the OpenAPI document.
	Port        string
	PublicURLs  []string
	CORSOrigins []string
	Env         string

	RateLimit RateLimitConfig

	// S3 archive of deleted loans (optional)
	S3 S3Config
}

// RateLimitConfig holds the per-client limit on mutating requests
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// S3Config holds AWS S3 configuration
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // Optional: for MinIO/LocalStack local dev
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	checkInterval, err := getEnvDuration("STORAGE_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, err
	}
	perMinute, err := getEnvInt("RATE_LIMIT_PER_MINUTE", 60)
	if err != nil {
		return nil, err
	}
	burst, err := getEnvInt("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, err
	}

	port := getEnv("PORT", "8080")

	cfg := &Config{
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		SQLitePath:           getEnv("SQLITE_PATH", ""),
		StorageCheckInterval: checkInterval,
		Auth0Domain:          getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience:        getEnv("AUTH0_AUDIENCE", ""),
		Port:                 port,
		PublicURLs:           splitList(getEnv("PUBLIC_URLS", "http://localhost:"+port)),
		CORSOrigins:          splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		Env:                  getEnv("ENV", "development"),
		RateLimit: RateLimitConfig{
			PerMinute: perMinute,
			Burst:     burst,
		},
		S3: S3Config{
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""), // Empty = use AWS, set for MinIO/LocalStack
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL != "" && c.SQLitePath != "" {
		return fmt.Errorf("DATABASE_URL and SQLITE_PATH are mutually exclusive")
	}
	if (c.Auth0Domain == "") != (c.Auth0Audience == "") {
		return fmt.Errorf("AUTH0_DOMAIN and AUTH0_AUDIENCE must be set together")
	}
	if c.StorageCheckInterval <= 0 {
		return fmt.Errorf("STORAGE_CHECK_INTERVAL must be positive")
	}
	if c.RateLimit.PerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// AuthEnabled reports whether mutating routes require a bearer token
func (c *Config) AuthEnabled() bool {
	return c.Auth0Domain != "" && c.Auth0Audience != ""
}

// ArchiveEnabled reports whether deleted loans are archived to S3
func (c *Config) ArchiveEnabled() bool {
	return c.S3.Bucket != ""
}

// PrimaryBackend names the durable store, or "" when none is configured
func (c *Config) PrimaryBackend() string {
	switch {
	case c.DatabaseURL != "":
		return "postgres"
	case c.SQLitePath != "":
		return "sqlite"
	default:
		return ""
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList splits a comma separated value and drops blank entries
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
