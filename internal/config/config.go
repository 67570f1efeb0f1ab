package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/punchamoorthee/coinmarket/internal/identifier"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	DBDriver string `env:"DB_DRIVER"   envDefault:"postgres"`
	DBSource string `env:"DB_SOURCE,required,notEmpty"`
	Port     string `env:"SERVER_PORT" envDefault:"8080"`
	Env      string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"   envDefault:"info"`

	MaxBit         int           `env:"MAX_BIT"         envDefault:"999"`
	MinCoinValue   int64         `env:"MIN_COIN_VALUE"  envDefault:"10000"`
	MaxCoinValue   int64         `env:"MAX_COIN_VALUE"  envDefault:"100000"`
	CacheTTL       time.Duration `env:"CACHE_TTL"       envDefault:"60s"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`
	MintAttempts   int           `env:"MINT_ATTEMPTS"   envDefault:"2"`

	// Token bucket applied to POST routes, per second.
	MutationRateLimit float64 `env:"MUTATION_RATE_LIMIT" envDefault:"50"`
	MutationRateBurst int     `env:"MUTATION_RATE_BURST" envDefault:"100"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DBDriver))
	}
	if c.MaxBit < 3 || c.MaxBit > identifier.MaxRank {
		errs = append(errs, fmt.Errorf("MAX_BIT must be between 3 and %d, got %d", identifier.MaxRank, c.MaxBit))
	}
	if c.MinCoinValue > c.MaxCoinValue {
		errs = append(errs, fmt.Errorf("MIN_COIN_VALUE %d exceeds MAX_COIN_VALUE %d", c.MinCoinValue, c.MaxCoinValue))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.MintAttempts < 1 {
		errs = append(errs, errors.New("MINT_ATTEMPTS must be at least 1"))
	}
	if c.MutationRateLimit <= 0 || c.MutationRateBurst < 1 {
		errs = append(errs, errors.New("MUTATION_RATE_LIMIT and MUTATION_RATE_BURST must be positive"))
	}
	return errors.Join(errs...)
}
