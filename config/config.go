// config/config.go
package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the process configuration read from the environment (and .env when present).
type Config struct {
	Port             string   `env:"PORT" envDefault:"5200"`
	DatabaseDriver   string   `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL      string   `env:"DATABASE_URL"`
	GameServiceToken string   `env:"GAME_SERVICE_TOKEN"`
	AllowedOrigins   []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// Reward tables: R2 key wins over a local path, both fall back to the embedded defaults.
	RewardTablesPath  string `env:"REWARD_TABLES_PATH"`
	RewardTablesR2Key string `env:"REWARD_TABLES_R2_KEY"`

	CatalogTimeout       time.Duration `env:"CATALOG_TIMEOUT" envDefault:"2s"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`
	SessionAbandonAfter  time.Duration `env:"SESSION_ABANDON_AFTER" envDefault:"24h"`

	CatalogSyncURL      string        `env:"CATALOG_SYNC_URL"`
	CatalogSyncInterval time.Duration `env:"CATALOG_SYNC_INTERVAL" envDefault:"10m"`

	R2   R2Config   `envPrefix:"R2_"`
	Otel OtelConfig `envPrefix:"OTEL_"`
}

type R2Config struct {
	AccountID       string `env:"ACCOUNT_ID"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	AccessKeySecret string `env:"ACCESS_KEY_SECRET"`
	Bucket          string `env:"BUCKET_NAME"`
}

// Enabled reports whether enough R2 settings exist to build a client.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.AccessKeySecret != "" && c.Bucket != ""
}

type OtelConfig struct {
	Endpoint string `env:"ENDPOINT"`
	Enabled  bool   `env:"ENABLED" envDefault:"true"`
}

// Load reads .env (if any) and parses the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q (want %s or %s)", c.DatabaseDriver, DriverPostgres, DriverSQLite)
	}
	if c.CatalogTimeout <= 0 {
		return fmt.Errorf("CATALOG_TIMEOUT must be positive, got %s", c.CatalogTimeout)
	}
	if c.SessionSweepInterval < 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must not be negative, got %s", c.SessionSweepInterval)
	}
	if c.SessionAbandonAfter <= 0 {
		return fmt.Errorf("SESSION_ABANDON_AFTER must be positive, got %s", c.SessionAbandonAfter)
	}
	return nil
}
