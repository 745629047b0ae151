package config

import (
	"io"
	"log/slog"
)

// InitLogger configures the default slog logger from cfg, writing to w.
func InitLogger(cfg LogConfig, w io.Writer) {
	slog.SetDefault(NewLogger(cfg, w))
}

// NewLogger builds a logger from cfg: JSON unless Format is "text", level
// parsed from Level with info as the fallback.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}
