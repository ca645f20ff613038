package config

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// NewLogger builds the process logger from LOG_FORMAT and LOG_LEVEL.
// tint is meant for a developer terminal; json for log shippers.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	switch c.LogFormat {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
	case FormatTint:
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      c.LogLevel,
			TimeFormat: time.Kitchen,
		}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
	}
}
