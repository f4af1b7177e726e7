package main

import (
	"log/slog"

	"github.com/kstaniek/go-openlcb-link/internal/logging"
)

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogger builds the global structured logger from config and installs
// it as the package-wide default every internal package pulls from via
// logging.L().
func setupLogger(cfg appConfig) *slog.Logger {
	l := logging.New(cfg.logFormat, parseLevel(cfg.logLevel), nil)
	logging.Set(l)
	return l
}
