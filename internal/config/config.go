// Package config loads the server configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the runtime configuration of the server.
type Config struct {
	Port           string `env:"PORT" envDefault:"5175"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	DBPath         string `env:"DB_PATH" envDefault:"./data/app.db"`
	JWTSecret      string `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	JWTExpiresDays int    `env:"JWT_EXPIRES_DAYS" envDefault:"14"`
	CookieName     string `env:"COOKIE_NAME" envDefault:"criminle_token"`
	ClientOrigin   string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`
	DailySalt      string `env:"DAILY_SALT" envDefault:"local_dev_salt"`
	CountriesFile  string `env:"COUNTRIES_FILE"`
	AppEnv         string `env:"APP_ENV" envDefault:"development"`
}

// Production reports whether cookies should be issued Secure + SameSite=None.
func (c Config) Production() bool { return c.AppEnv == "production" }

// Load parses Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JWTExpiresDays <= 0 {
		return Config{}, fmt.Errorf("parse env: JWT_EXPIRES_DAYS must be positive, got %d", cfg.JWTExpiresDays)
	}
	return cfg, nil
}
