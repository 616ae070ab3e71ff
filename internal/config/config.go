package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Optional bearer token for the API; empty disables auth.
	APIKey string

	// Export root served by the API and read by disk-backed views.
	DataDir string

	// Remote export root, e.g. a raw-content URL of the published tree.
	BaseURL string

	// Default rubric language.
	Lang string

	// Remote client behavior.
	HTTPTimeout  time.Duration
	FetchRetries int
}

func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:    envOr("ICF_PORT", "8072"),
		APIKey:  os.Getenv("ICF_API_KEY"),
		DataDir: envOr("ICF_DATA_DIR", "./icf_json"),
		BaseURL: os.Getenv("ICF_BASE_URL"),
		Lang:    envOr("ICF_LANG", "de"),

		HTTPTimeout:  envDuration("ICF_HTTP_TIMEOUT", 30*time.Second),
		FetchRetries: envInt("ICF_FETCH_RETRIES", 2),
	}

	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.FetchRetries < 0 {
		cfg.FetchRetries = 2
	}

	return cfg
}

// Validate checks the configuration for the serve path.
func (c Config) Validate() error {
	if c.DataDir == "" && c.BaseURL == "" {
		return fmt.Errorf("either ICF_DATA_DIR or ICF_BASE_URL is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
