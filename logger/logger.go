package logger

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const logo = `     _
  __| |_ __ ___  __ _ _ __ ___
 / _` + "`" + ` | '__/ _ \/ _` + "`" + ` | '_ ` + "`" + ` _ \
| (_| | | |  __/ (_| | | | | | |
 \__,_|_|  \___|\__,_|_| |_| |_|
`

// New builds a zap.Logger writing to w, honoring cfg's format and
// level. Format "json" selects zap's JSON encoder; anything else
// (including the "auto" default) uses the console encoder with RFC3339
// timestamps and stringified durations. Unless cfg.SuppressLogo is
// set, a startup banner is printed to w ahead of the first structured
// line.
func New(w io.Writer, cfg Config) *zap.Logger {
	if !cfg.SuppressLogo {
		fmt.Fprint(w, logo)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format(time.RFC3339))
	}
	encoderConfig.EncodeDuration = func(d time.Duration, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(d.String())
	}

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	return zap.New(zapcore.NewCore(
		encoder,
		zapcore.Lock(zapcore.AddSync(w)),
		cfg.Level,
	))
}
