// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultAccessSecret = "dev-access-secret-change-in-production"

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Events   EventsConfig
	Jobs     JobsConfig
}

type ServerConfig struct {
	GRPCPort         string
	HTTPPort         string
	Environment      string
	AutoMigrate      bool
	EnableReflection bool
	LogLevel         string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	AccessSecret        string
	AccessTokenDuration time.Duration
}

type EventsConfig struct {
	// NATSURL empty disables event publication.
	NATSURL       string
	Stream        string
	SubjectPrefix string
}

type JobsConfig struct {
	ExpirySweepInterval time.Duration
	ExpirySweepBatch    int
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			GRPCPort:         getEnv("GRPC_PORT", "50051"),
			HTTPPort:         getEnv("HTTP_PORT", "8080"),
			Environment:      getEnv("ENVIRONMENT", "development"),
			AutoMigrate:      getEnvAsBool("AUTO_MIGRATE", true),
			EnableReflection: getEnvAsBool("ENABLE_REFLECTION", false),
			LogLevel:         getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "hustlemarket"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		JWT: JWTConfig{
			AccessSecret:        getEnv("JWT_ACCESS_SECRET", getEnv("JWT_SECRET", defaultAccessSecret)),
			AccessTokenDuration: getEnvAsDuration("JWT_ACCESS_TOKEN_DURATION", 15*time.Minute),
		},
		Events: EventsConfig{
			NATSURL:       getEnv("NATS_URL", ""),
			Stream:        getEnv("NATS_STREAM", "HUSTLE_LIFECYCLE"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "hustle.lifecycle"),
		},
		Jobs: JobsConfig{
			ExpirySweepInterval: getEnvAsDuration("EXPIRY_SWEEP_INTERVAL", 5*time.Minute),
			ExpirySweepBatch:    getEnvAsInt("EXPIRY_SWEEP_BATCH", 100),
		},
	}, nil
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// ValidateConfig checks settings the server cannot start without
func (c *Config) ValidateConfig() error {
	var errs []error

	if c.Server.GRPCPort == "" {
		errs = append(errs, errors.New("GRPC_PORT is required"))
	}
	if c.Server.HTTPPort == "" {
		errs = append(errs, errors.New("HTTP_PORT is required"))
	}
	if _, err := ParseLogLevel(c.Server.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET is required"))
	}
	if !c.IsDevelopment() && c.JWT.AccessSecret == defaultAccessSecret {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be changed outside development"))
	}
	if c.JWT.AccessTokenDuration <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TOKEN_DURATION must be positive"))
	}
	if c.Jobs.ExpirySweepInterval <= 0 {
		errs = append(errs, errors.New("EXPIRY_SWEEP_INTERVAL must be positive"))
	}
	if c.Jobs.ExpirySweepBatch <= 0 {
		errs = append(errs, errors.New("EXPIRY_SWEEP_BATCH must be positive"))
	}
	if c.Events.NATSURL != "" && c.Events.SubjectPrefix == "" {
		errs = append(errs, errors.New("NATS_SUBJECT_PREFIX is required when NATS_URL is set"))
	}

	return errors.Join(errs...)
}

// ParseLogLevel maps LOG_LEVEL to a slog level
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown LOG_LEVEL %q", level)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	// Try parsing as duration string (e.g., "15m", "24h")
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}

	return defaultValue
}
