// Package config loads runtime settings from the environment, after pulling in
// the first .env file found in the usual locations.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverTurso    = "turso"
	DriverPostgres = "postgres"
)

// Config holds everything the CLI needs to wire the pipeline
type Config struct {
	// Riot API
	RiotAPIKey   string
	RiotPlatform string // platform routing, e.g. euw1
	RiotRegion   string // regional routing, e.g. europe

	// Event store
	StoreDriver    string
	SQLitePath     string
	DatabaseURL    string
	TursoURL       string
	TursoAuthToken string

	// Local caches (raw matches, catalog snapshot)
	CacheDir string

	// Static data
	DDragonVersion string // empty = latest

	IngestBatchSize   int
	DiscordWebhookURL string
	LogMode           string
}

// envPaths are tried in order; the first that loads wins
var envPaths = []string{".env", "../.env", "../../.env"}

// LoadEnv loads the first .env file found and returns its path ("" if none)
func LoadEnv() string {
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

// Load reads configuration from environment variables with defaults
func Load() (*Config, error) {
	apiKey := envOr("RIOT_API_KEY", os.Getenv("RIOT-DEV-KEY"))

	cfg := &Config{
		RiotAPIKey:        strings.Trim(apiKey, "\""),
		RiotPlatform:      envOr("RIOT_PLATFORM", "euw1"),
		RiotRegion:        envOr("RIOT_REGION", "europe"),
		StoreDriver:       strings.ToLower(envOr("STORE_DRIVER", DriverSQLite)),
		SQLitePath:        envOr("SQLITE_PATH", "data.db"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		TursoURL:          os.Getenv("TURSO_DATABASE_URL"),
		TursoAuthToken:    os.Getenv("TURSO_AUTH_TOKEN"),
		CacheDir:          strings.Trim(envOr("CACHE_DIR", "cache"), "\""),
		DDragonVersion:    os.Getenv("DDRAGON_VERSION"),
		IngestBatchSize:   envInt("INGEST_BATCH_SIZE", 50),
		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		LogMode:           envOr("LOG_MODE", "development"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH must be set for the sqlite driver")
		}
	case DriverTurso:
		if c.TursoURL == "" {
			return fmt.Errorf("TURSO_DATABASE_URL must be set for the turso driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want sqlite, turso or postgres)", c.StoreDriver)
	}
	if c.IngestBatchSize <= 0 {
		return fmt.Errorf("INGEST_BATCH_SIZE must be positive, got %d", c.IngestBatchSize)
	}
	return nil
}

// MatchCacheDir is where raw downloaded matches are kept
func (c *Config) MatchCacheDir() string {
	return filepath.Join(c.CacheDir, "matches")
}

// CatalogCachePath is the offline snapshot of champion/item reference data
func (c *Config) CatalogCachePath() string {
	return filepath.Join(c.CacheDir, "catalog.json")
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
