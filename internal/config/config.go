package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// Redis configuration (rate limit counters, settings cache)
	Redis RedisConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// CORS configuration
	CORS CORSConfig

	// Email gateway configuration
	Email EmailConfig

	// Notification outbox configuration
	Notification NotificationConfig

	// Booking engine configuration
	Booking BookingConfig

	// Security configuration
	Security SecurityConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	Driver             string // "postgres" (lib/pq) or "pgx"
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// RedisConfig holds Redis connection configuration.
// An empty Addr disables Redis: rate limits fall back to the database and
// booking settings are read uncached.
type RedisConfig struct {
	Addr             string
	Password         string
	DB               int
	SettingsCacheTTL time.Duration
}

// Enabled reports whether a Redis address is configured
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	BookingRequests      int // reservation submissions per window per client
	BookingWindowSeconds int
	QueryRequests        int // availability/pricing lookups per window per client
	QueryWindowSeconds   int
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// EmailConfig holds outbound email gateway configuration.
// An empty APIKey disables sending without error.
type EmailConfig struct {
	APIURL        string
	APIKey        string
	FromAddress   string
	FromName      string
	OperatorEmail string // receives internal new-reservation notices
	Timeout       time.Duration
}

// NotificationConfig holds outbox dispatcher configuration
type NotificationConfig struct {
	DispatchInterval time.Duration
	BatchSize        int
	MaxAttempts      int
	BaseBackoff      time.Duration
	SendRatePerSec   float64
	SendBurst        int
}

// BookingConfig holds booking engine configuration
type BookingConfig struct {
	Currency          string
	ReferenceAttempts int
	PublicSiteURL     string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	BcryptCost       int
	EnableRequestLog bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			Driver:             getEnv("DATABASE_DRIVER", "postgres"),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 28800)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:             getEnv("REDIS_ADDR", ""),
			Password:         getEnv("REDIS_PASSWORD", ""),
			DB:               getEnvAsInt("REDIS_DB", 0),
			SettingsCacheTTL: time.Duration(getEnvAsInt("SETTINGS_CACHE_TTL_SECONDS", 60)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			BookingRequests:      getEnvAsInt("RATE_LIMIT_BOOKING_REQUESTS", 5),
			BookingWindowSeconds: getEnvAsInt("RATE_LIMIT_BOOKING_WINDOW_SECONDS", 600),
			QueryRequests:        getEnvAsInt("RATE_LIMIT_QUERY_REQUESTS", 60),
			QueryWindowSeconds:   getEnvAsInt("RATE_LIMIT_QUERY_WINDOW_SECONDS", 60),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Email: EmailConfig{
			APIURL:        getEnv("EMAIL_API_URL", "https://api.resend.com/emails"),
			APIKey:        getEnv("EMAIL_API_KEY", ""),
			FromAddress:   getEnv("EMAIL_FROM_ADDRESS", "reservations@riad.local"),
			FromName:      getEnv("EMAIL_FROM_NAME", "Riad Reservations"),
			OperatorEmail: getEnv("EMAIL_OPERATOR_ADDRESS", ""),
			Timeout:       time.Duration(getEnvAsInt("EMAIL_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Notification: NotificationConfig{
			DispatchInterval: time.Duration(getEnvAsInt("NOTIFICATION_DISPATCH_INTERVAL_SECONDS", 30)) * time.Second,
			BatchSize:        getEnvAsInt("NOTIFICATION_BATCH_SIZE", 20),
			MaxAttempts:      getEnvAsInt("NOTIFICATION_MAX_ATTEMPTS", 8),
			BaseBackoff:      time.Duration(getEnvAsInt("NOTIFICATION_BASE_BACKOFF_SECONDS", 30)) * time.Second,
			SendRatePerSec:   getEnvAsFloat("NOTIFICATION_SEND_RATE", 2),
			SendBurst:        getEnvAsInt("NOTIFICATION_SEND_BURST", 5),
		},
		Booking: BookingConfig{
			Currency:          getEnv("BOOKING_CURRENCY", "MAD"),
			ReferenceAttempts: getEnvAsInt("BOOKING_REFERENCE_ATTEMPTS", 5),
			PublicSiteURL:     getEnv("PUBLIC_SITE_URL", "http://localhost:3000"),
		},
		Security: SecurityConfig{
			BcryptCost:       getEnvAsInt("BCRYPT_COST", 12),
			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Database.Driver != "postgres" && c.Database.Driver != "pgx" {
		return fmt.Errorf("invalid DATABASE_DRIVER: %s (must be 'postgres' or 'pgx')", c.Database.Driver)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.RateLimit.BookingRequests <= 0 || c.RateLimit.BookingWindowSeconds <= 0 {
		return fmt.Errorf("booking rate limit requests and window must be positive")
	}

	if c.RateLimit.QueryRequests <= 0 || c.RateLimit.QueryWindowSeconds <= 0 {
		return fmt.Errorf("query rate limit requests and window must be positive")
	}

	if c.Booking.ReferenceAttempts <= 0 {
		return fmt.Errorf("BOOKING_REFERENCE_ATTEMPTS must be positive")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %g", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
