package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fieldload/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Catalog  CatalogConfig
	Load     LoadConfig
	Logging  LoggingConfig
	Database DatabaseConfig
}

// CatalogConfig holds the remote catalog service connection settings
type CatalogConfig struct {
	User          string
	Password      string
	Client        string
	Mode          string
	ServerURL     string
	ContentType   string
	RatePerSecond float64
	Timeout       time.Duration
}

// LoadConfig holds the settings of one bulk load
type LoadConfig struct {
	SourceFile    string
	EnvironmentID string
	FieldName     string
	PageSize      int
	Workers       int
}

// LoggingConfig holds diagnostic log settings
type LoggingConfig struct {
	File  string
	Level string
}

// DatabaseConfig holds the optional run ledger connection
type DatabaseConfig struct {
	URL string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Catalog:  *loadCatalogConfig(),
		Load:     *loadLoadConfig(),
		Logging:  *loadLoggingConfig(),
		Database: DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadCatalogConfig() *CatalogConfig {
	return &CatalogConfig{
		User:          os.Getenv("USER"),
		Password:      os.Getenv("PASSWORD"),
		Client:        os.Getenv("CLIENT"),
		Mode:          getEnvOrDefault("MODE", "prod"),
		ServerURL:     os.Getenv("SERVER_URL"),
		ContentType:   getEnvOrDefault("CONTENT_TYPE", "application/json"),
		RatePerSecond: getEnvFloatOrDefault("RATE_PER_SECOND", 120),
		Timeout:       getEnvDurationOrDefault("HTTP_TIMEOUT", 30*time.Second),
	}
}

func loadLoadConfig() *LoadConfig {
	return &LoadConfig{
		SourceFile:    getEnvOrDefault("EXCEL_FILE", "data/values.xlsx"),
		EnvironmentID: os.Getenv("ENV_ID"),
		FieldName:     os.Getenv("METADATA_NAME"),
		PageSize:      getEnvIntOrDefault("PAGE_SIZE", 1000),
		Workers:       getEnvIntOrDefault("WORKERS", 10),
	}
}

func loadLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		File:  getEnvOrDefault("LOG_FILE", "fieldload.log"),
		Level: getEnvOrDefault("LOG_LEVEL", "error"),
	}
}

func validateConfig(config *Config) error {
	if config.Load.PageSize <= 0 {
		return errors.ConfigInvalid("PAGE_SIZE must be positive")
	}
	if config.Load.Workers <= 0 {
		return errors.ConfigInvalid("WORKERS must be positive")
	}
	if config.Catalog.RatePerSecond <= 0 {
		return errors.ConfigInvalid("RATE_PER_SECOND must be positive")
	}
	if config.Catalog.Timeout <= 0 {
		return errors.ConfigInvalid("HTTP_TIMEOUT must be positive")
	}
	return nil
}

// ValidateForLoad checks the settings a load run cannot start without.
// Flags may have filled them in after Load.
func (c *Config) ValidateForLoad() error {
	if c.Load.EnvironmentID == "" {
		return errors.ConfigInvalid("ENV_ID is required")
	}
	if c.Load.FieldName == "" {
		return errors.ConfigInvalid("METADATA_NAME is required")
	}
	if c.Load.SourceFile == "" {
		return errors.ConfigInvalid("EXCEL_FILE is required")
	}
	if c.Catalog.ServerURL == "" && c.Catalog.Client == "" {
		return errors.ConfigInvalid("CLIENT or SERVER_URL is required")
	}
	return validateConfig(c)
}

// BaseURL returns the catalog server root, always ending in "/"
func (c CatalogConfig) BaseURL() string {
	if c.ServerURL != "" {
		return strings.TrimRight(c.ServerURL, "/") + "/"
	}
	if c.Mode == "dev" {
		return fmt.Sprintf("http://%s.newhom.greendocs.net/", c.Client)
	}
	return fmt.Sprintf("https://%s.greendocs.net/", c.Client)
}

// Authorization returns the Basic authorization header value
func (c CatalogConfig) Authorization() string {
	encoded := base64.StdEncoding.EncodeToString([]byte(c.User + ":" + c.Password))
	return "Basic " + encoded
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
