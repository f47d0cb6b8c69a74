package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	DynamoDB DynamoDBConfig
	Identity IdentityConfig
	Verify   VerifyConfig
	Lockout  LockoutConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	Endpoint string
	Password string
	DB       int
}

type DynamoDBConfig struct {
	Endpoint  string
	Region    string
	TableName string
}

// IdentityConfig points at the external identity/session provider
// (GoTrue-style REST API). The service key authorizes admin operations;
// the JWT secret verifies access tokens the provider mints.
type IdentityConfig struct {
	URL        string
	ServiceKey string
	JWTSecret  string
	Timeout    time.Duration
}

// VerifyConfig points at the external OTP delivery provider
// (Twilio-Verify-style REST API). DefaultDestination is the fallback
// number used when a participant record carries no phone.
type VerifyConfig struct {
	BaseURL            string
	AccountSID         string
	AuthToken          string
	ServiceSID         string
	Channel            string
	DefaultDestination string
	Timeout            time.Duration
}

type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Endpoint: getEnv("REDIS_ENDPOINT", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		DynamoDB: DynamoDBConfig{
			Endpoint:  getEnv("DYNAMODB_ENDPOINT", ""),
			Region:    getEnv("DYNAMODB_REGION", "us-east-1"),
			TableName: getEnv("DYNAMODB_TABLE_NAME", ""),
		},
		Identity: IdentityConfig{
			URL:        getEnv("IDENTITY_URL", ""),
			ServiceKey: getEnv("IDENTITY_SERVICE_KEY", ""),
			JWTSecret:  getEnv("IDENTITY_JWT_SECRET", ""),
			Timeout:    getEnvAsDuration("IDENTITY_TIMEOUT", 10*time.Second),
		},
		Verify: VerifyConfig{
			BaseURL:            getEnv("VERIFY_BASE_URL", "https://verify.twilio.com"),
			AccountSID:         getEnv("VERIFY_ACCOUNT_SID", ""),
			AuthToken:          getEnv("VERIFY_AUTH_TOKEN", ""),
			ServiceSID:         getEnv("VERIFY_SERVICE_SID", ""),
			Channel:            getEnv("VERIFY_CHANNEL", "sms"),
			DefaultDestination: getEnv("VERIFY_DEFAULT_DESTINATION", ""),
			Timeout:            getEnvAsDuration("VERIFY_TIMEOUT", 10*time.Second),
		},
		Lockout: LockoutConfig{
			MaxAttempts: getEnvAsInt("LOCKOUT_MAX_ATTEMPTS", 3),
			Duration:    getEnvAsDuration("LOCKOUT_DURATION", 5*time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	if cfg.Identity.URL == "" {
		return nil, fmt.Errorf("IDENTITY_URL environment variable is required")
	}

	if cfg.Identity.ServiceKey == "" {
		return nil, fmt.Errorf("IDENTITY_SERVICE_KEY environment variable is required")
	}

	if cfg.Verify.ServiceSID == "" {
		return nil, fmt.Errorf("VERIFY_SERVICE_SID environment variable is required")
	}

	if cfg.Lockout.MaxAttempts < 1 {
		return nil, fmt.Errorf("LOCKOUT_MAX_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
