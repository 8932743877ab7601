package config

import (
	"os"
	"path/filepath"
	"strconv"

	"datawhisperer/internal/errors"
)

// Config represents the complete engine configuration
type Config struct {
	Database DatabaseConfig
	Paths    PathConfig
	Analysis AnalysisConfig
}

// DatabaseConfig holds metadata-store settings. URL is optional; when
// empty the engine runs on the in-memory metadata store.
type DatabaseConfig struct {
	URL string
}

// PathConfig holds file system paths for durable state.
type PathConfig struct {
	// DataDir holds one columnar file per registered dataset.
	DataDir string
	// PlotsDir holds rendered chart artifacts and the cache index.
	PlotsDir string
}

// AnalysisConfig holds statistical defaults.
type AnalysisConfig struct {
	// DefaultAlpha is the significance level used when a caller
	// omits one. Must lie in (0, 1).
	DefaultAlpha float64
	// Seed drives the resampling simulations; 0 means time-seeded.
	Seed int64
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	dataDir := getEnvOrDefault("EDA_DATA_DIR", filepath.Join("data", "datasets"))
	plotsDir := getEnvOrDefault("EDA_PLOTS_DIR", filepath.Join("data", "plots"))

	alpha, err := getEnvFloatOrDefault("EDA_DEFAULT_ALPHA", 0.05)
	if err != nil {
		return nil, errors.ConfigInvalid("EDA_DEFAULT_ALPHA must be a number")
	}
	if alpha <= 0 || alpha >= 1 {
		return nil, errors.ConfigInvalid("EDA_DEFAULT_ALPHA must be in (0, 1)")
	}

	seed, err := getEnvIntOrDefault("EDA_SEED", 0)
	if err != nil {
		return nil, errors.ConfigInvalid("EDA_SEED must be an integer")
	}

	return &Config{
		Database: DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		Paths:    PathConfig{DataDir: dataDir, PlotsDir: plotsDir},
		Analysis: AnalysisConfig{DefaultAlpha: alpha, Seed: seed},
	}, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloatOrDefault(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvIntOrDefault(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
