package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer    string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience  string   `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL   string   `mapstructure:"AUTH_JWKS_URL"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`
	MigrationsDir string   `mapstructure:"MIGRATIONS_DIR"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("MIGRATIONS_DIR")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}
