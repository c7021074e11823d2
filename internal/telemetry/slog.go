package telemetry

import (
	"log/slog"
	"os"
	"strings"

	"github.com/apivault/apivault/internal/config"
)

// SetupLogger builds the process-wide logger from the logging section of the
// configuration and installs it as the slog default, so every slog.Info/Warn/
// Error call in the application goes through it. JSON output is the default;
// "text" is meant for local runs. Source locations are attached only at debug
// level. Returns the logger for callers that want to derive child loggers.
func SetupLogger(cfg config.LoggingConfig) *slog.Logger {
	lvl := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	logger.Info("logger initialised", "format", cfg.Format, "level", lvl.String())
	return logger
}

// parseLevel understands slog's textual level names ("debug", "info", "warn",
// "error", case-insensitive, with optional offsets like "info+2"). Unknown
// values fall back to info rather than failing startup over a typo.
func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
