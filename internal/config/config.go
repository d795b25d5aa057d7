// Package config loads the operator configuration of the loopswap daemon
// and CLI: a TOML file overlaid with LOOPSWAP_* environment variables.
//
// This is process configuration. The on-ledger program config (pause flag,
// upgrade authority) lives in the record store and is managed by
// internal/governance.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/roach88/loopswap/internal/assets"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "LOOPSWAP_"

// Config is the complete operator configuration.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
	Assets   AssetsConfig   `toml:"assets"`
}

// DatabaseConfig locates the sqlite ledger.
type DatabaseConfig struct {
	Path string `toml:"path" env:"DB_PATH"`
}

// ServerConfig configures the gRPC submission surface.
type ServerConfig struct {
	Listen string `toml:"listen" env:"LISTEN"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `toml:"level"  env:"LOG_LEVEL"`
	Format string `toml:"format" env:"LOG_FORMAT"`
}

// AssetsConfig selects how strictly assets are checked before they move.
type AssetsConfig struct {
	Verification string `toml:"verification" env:"VERIFICATION"`
}

// Default returns the configuration used when no file or variable says
// otherwise.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: "loopswap.db"},
		Server:   ServerConfig{Listen: "127.0.0.1:7420"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Assets:   AssetsConfig{Verification: "standard"},
	}
}

// Load reads path (skipped when empty) over Default, applies environment
// overrides and validates the result. Unknown keys in the file are errors.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("load config: unknown keys: %s", strings.Join(keys, ", "))
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path must not be empty"))
	}
	if strings.TrimSpace(c.Server.Listen) == "" {
		errs = append(errs, errors.New("server.listen must not be empty"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	if _, err := assets.ParseMode(c.Assets.Verification); err != nil {
		errs = append(errs, fmt.Errorf("assets.verification: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// VerificationMode returns the parsed asset verification mode. Call only on
// a validated config.
func (c Config) VerificationMode() assets.Mode {
	m, _ := assets.ParseMode(c.Assets.Verification)
	return m
}
