// Package config loads the TOML configuration for the dream CLI: a
// single struct decoded wholesale with BurntSushi/toml, section structs
// for each subsystem, and a Validate pass run once after decoding.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/mentalblood0/dream/logger"
)

// DefaultPath is where dream looks for its config file if none is given
// on the command line.
const DefaultPath = "dream.toml"

// StoreConfig configures the on-disk key-value store backing the index.
type StoreConfig struct {
	// Path is the bbolt file path.
	Path string `toml:"path"`
}

// NewStoreConfig returns a StoreConfig with reasonable defaults.
func NewStoreConfig() StoreConfig {
	return StoreConfig{Path: "dream.db"}
}

// Validate reports whether c is usable.
func (c StoreConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	return nil
}

// Config is the top-level configuration format for the dream binary.
type Config struct {
	Store   StoreConfig   `toml:"store"`
	Logging logger.Config `toml:"logging"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() Config {
	return Config{
		Store:   NewStoreConfig(),
		Logging: logger.NewConfig(),
	}
}

// FromTomlFile loads a Config from the TOML file at path. A missing file
// is not an error: the caller gets defaults back.
func FromTomlFile(path string) (Config, error) {
	c := NewConfig()

	bs, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if _, err := toml.Decode(string(bs), &c); err != nil {
		return c, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return c, nil
}

// Validate returns an error if the config is unusable.
func (c Config) Validate() error {
	return c.Store.Validate()
}
