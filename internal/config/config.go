// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// Screening
	WindowLimit     int           // Candles fetched per candidate
	CacheSuccessTTL time.Duration // Settled screen results TTL
	CacheFailedTTL  time.Duration // Failure marker TTL

	// Job lifecycle
	JobTimeout    time.Duration // Wall-clock budget per job
	JobStuckAfter time.Duration // Stalled-at-100% threshold
	JobStaleAfter time.Duration // No-progress threshold
	JobRetention  time.Duration // Terminal job retention

	// Snapshot export (S3-compatible storage); disabled when bucket is empty
	Backup BackupConfig
}

// BackupConfig holds snapshot export configuration
type BackupConfig struct {
	Bucket    string
	Endpoint  string // Custom endpoint for S3-compatible stores (R2, MinIO)
	Region    string
	AccessKey string
	SecretKey string
}

// Enabled reports whether snapshot export is configured
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("SCREENER_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("SCREENER_PORT", 8010),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		WindowLimit:     getEnvAsInt("SCREEN_WINDOW_LIMIT", 250),
		CacheSuccessTTL: getEnvAsDuration("SCREEN_CACHE_TTL", time.Hour),
		CacheFailedTTL:  getEnvAsDuration("SCREEN_CACHE_FAILED_TTL", 5*time.Minute),

		JobTimeout:    getEnvAsDuration("JOB_TIMEOUT", 7*time.Minute),
		JobStuckAfter: getEnvAsDuration("JOB_STUCK_AFTER", 30*time.Second),
		JobStaleAfter: getEnvAsDuration("JOB_STALE_AFTER", 2*time.Minute),
		JobRetention:  getEnvAsDuration("JOB_RETENTION", time.Hour),

		Backup: BackupConfig{
			Bucket:    getEnv("BACKUP_BUCKET", ""),
			Endpoint:  getEnv("BACKUP_ENDPOINT", ""),
			Region:    getEnv("BACKUP_REGION", "auto"),
			AccessKey: getEnv("BACKUP_ACCESS_KEY_ID", ""),
			SecretKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
		},
	}

	return cfg, nil
}

// DatabasePath returns the path of a named database inside the data dir
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
