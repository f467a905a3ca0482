package logger

import (
	"go.uber.org/zap/zapcore"
)

// Config controls how the dream CLI's logger is built: New reads every
// field here directly (format selects the encoder, level gates output,
// suppress-logo silences the startup banner).
type Config struct {
	Format       string        `toml:"format"`
	Level        zapcore.Level `toml:"level"`
	SuppressLogo bool          `toml:"suppress-logo"`
}

// NewConfig returns a new instance of Config with defaults: console
// output at info level, banner shown.
func NewConfig() Config {
	return Config{
		Format: "auto",
	}
}
