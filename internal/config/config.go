// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Store   StoreConfig
	Widget  WidgetConfig
	Log     LogConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host    string
	Port    int
	GinMode string
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BackendConfig holds the prediction backend configuration.
type BackendConfig struct {
	APIHost string
	Timeout time.Duration
}

// StoreConfig holds conversation store configuration.
type StoreConfig struct {
	Type     string
	Host     string
	Port     string
	Password string
	DB       int
	URI      string
	Database string
	TTL      time.Duration
}

// WidgetConfig holds flow-level session defaults.
type WidgetConfig struct {
	CustomerID     string
	WelcomeMessage string
	ErrorMessage   string
	SettlingDelay  time.Duration
	ClearOnStart   bool
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvAsInt("SERVER_PORT", 8080),
			GinMode: getEnv("GIN_MODE", "debug"),
		},
		Backend: BackendConfig{
			APIHost: getEnv("BACKEND_API_HOST", "http://localhost:3000"),
			Timeout: time.Duration(getEnvAsInt("BACKEND_TIMEOUT_SECONDS", 300)) * time.Second,
		},
		Store: StoreConfig{
			Type:     getEnv("STORE_TYPE", "redis"),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "chatembed"),
			TTL:      time.Duration(getEnvAsInt("STORE_TTL_SECONDS", 0)) * time.Second,
		},
		Widget: WidgetConfig{
			CustomerID:     getEnv("WIDGET_CUSTOMER_ID", ""),
			WelcomeMessage: getEnv("WIDGET_WELCOME_MESSAGE", ""),
			ErrorMessage:   getEnv("WIDGET_ERROR_MESSAGE", ""),
			SettlingDelay:  time.Duration(getEnvAsInt("INGEST_SETTLING_DELAY_MS", 2500)) * time.Millisecond,
			ClearOnStart:   getEnvAsBool("WIDGET_CLEAR_ON_START", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean with a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
