// Package config loads service configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything banterd needs to start.
type Config struct {
	Addr        string `env:"ADDR" envDefault:":8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// DBDriver selects the storage backend, sqlite or mysql.
	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN" envDefault:"banter.db"`

	// RedisAddr enables login throttling when set.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"60s"`
	MultiSession  bool          `env:"MULTI_SESSION" envDefault:"false"`

	// GeoIPDatabasePath enables login location capture when set.
	GeoIPDatabasePath string `env:"GEOIP_DATABASE_PATH"`

	MaxLoginAttempts int           `env:"MAX_LOGIN_ATTEMPTS" envDefault:"5"`
	LoginCooldown    time.Duration `env:"LOGIN_COOLDOWN" envDefault:"15m"`
}

// Load reads the configuration from the environment. A missing .env file
// is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "mysql" {
		return Config{}, fmt.Errorf("config: unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	return cfg, nil
}
