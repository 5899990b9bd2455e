// Package config provides runtime configuration for mintdeck.
// It uses Viper to load settings from files and environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for mintdeck.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────────────
	ListenHost string `mapstructure:"listen_host"`
	ListenPort int    `mapstructure:"listen_port"`

	// ── Mint ─────────────────────────────────────────────────────────────────
	// MintURL is the base address of the mint's REST API, e.g.
	// "http://127.0.0.1:3338".
	MintURL string `mapstructure:"mint_url"`
	// MintDBPath is the mint's SQLite database file, opened read-only for
	// entity counts. Empty disables the database adapter entirely; the
	// dashboard then reports the counts panel as unavailable.
	MintDBPath string `mapstructure:"mint_db_path"`

	// ── Security ─────────────────────────────────────────────────────────────
	// JWTSecret: HS256 signing key for dashboard session tokens.
	// Change this in production — default is a random-looking placeholder.
	JWTSecret string `mapstructure:"jwt_secret"`
	AdminUser string `mapstructure:"admin_user"`
	// AdminPass may be either a plain password or a bcrypt hash
	// (recognized by its "$2" prefix). Plain values are hashed at startup.
	AdminPass string `mapstructure:"admin_pass"`

	// ── Tunables ─────────────────────────────────────────────────────────────
	ProbeTimeoutSeconds   int    `mapstructure:"probe_timeout_seconds"`
	DBQueryTimeoutSeconds int    `mapstructure:"db_query_timeout_seconds"`
	PushIntervalSeconds   int    `mapstructure:"push_interval_seconds"`
	LogBufferCapacity     int    `mapstructure:"log_buffer_capacity"`
	ActivityBufferCap     int    `mapstructure:"activity_buffer_capacity"`
	DiskPath              string `mapstructure:"disk_path"`
}

// Load reads config from file (./config.yaml or ~/.mintdeck/config.yaml)
// and falls back to defaults. Environment variables with prefix MINTDECK_
// override file values.
func Load() (*Config, error) {
	v := viper.New()

	// --- Defaults ---
	v.SetDefault("listen_host", "0.0.0.0")
	v.SetDefault("listen_port", 8765)

	v.SetDefault("mint_url", "http://127.0.0.1:3338")
	v.SetDefault("mint_db_path", "")

	// Security defaults — MUST be overridden in production via config.yaml or env vars.
	v.SetDefault("jwt_secret", "mD3ck$Wq8@rT5!nB2#kJ7^hG4&cF1*xZ")
	v.SetDefault("admin_user", "admin")
	v.SetDefault("admin_pass", "admin")

	v.SetDefault("probe_timeout_seconds", 10)
	v.SetDefault("db_query_timeout_seconds", 5)
	v.SetDefault("push_interval_seconds", 5)
	v.SetDefault("log_buffer_capacity", 2000)
	v.SetDefault("activity_buffer_capacity", 1000)
	v.SetDefault("disk_path", "/")

	// --- Config file ---
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.mintdeck")
	if err := v.ReadInConfig(); err != nil {
		// config file is optional; ignore "not found" errors
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// --- Environment Variables ---
	v.SetEnvPrefix("MINTDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
