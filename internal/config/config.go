// Package config loads relay configuration from a TOML file, with flags
// layered on top by the command layer.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the relay's runtime settings.
type Config struct {
	// Listen is the HTTP listen address, e.g. ":9560".
	Listen string `toml:"listen"`

	// RedisAddr is the room store's address, either host:port or a
	// redis:// url. Empty keeps rooms in memory; they then live only as
	// long as the relay process.
	RedisAddr string `toml:"redis_addr"`

	// MDNS advertises the relay on the local network when true.
	MDNS bool `toml:"mdns"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Listen:   ":9560",
		MDNS:     true,
		LogLevel: "info",
	}
}

// Load reads the file at path over the defaults. A missing file is not an
// error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the relay cannot start with.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
}
