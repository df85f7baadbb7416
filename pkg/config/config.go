// Package config loads the daemon's environment-driven configuration.
package config

import "github.com/caarlos0/env/v11"

// Config holds everything the settlement daemon needs at startup.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Chain read path.
	ChainRPCURL   string `env:"CHAIN_RPC_URL" envDefault:"https://mainnet.base.org"`
	ChainID       int64  `env:"CHAIN_ID" envDefault:"8453"`
	BoxesContract string `env:"BOXES_CONTRACT"`

	// Sports feed.
	SportsAPIURL string `env:"SPORTS_API_URL"`

	// Shared cache tier. Empty DSN falls back to the in-process store.
	CacheDatabaseURL string `env:"CACHE_DATABASE_URL"`

	// Decimal scale of the contest currency token.
	CurrencyDecimals int32 `env:"CURRENCY_DECIMALS" envDefault:"6"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	err := env.Parse(&cfg)
	return cfg, err
}
