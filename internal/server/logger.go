// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"codeberg.org/oliverandrich/donations/internal/config"
	"github.com/lmittmann/tint"
)

// redactedKeys are attribute keys whose values never reach the log.
var redactedKeys = map[string]bool{
	"password":      true,
	"token":         true,
	"authorization": true,
	"jwt_secret":    true,
	"client_secret": true,
}

// setupLogger installs the configured logger as the slog default.
func setupLogger(cfg config.LogConfig) {
	slog.SetDefault(newLogger(os.Stdout, cfg))
}

// newLogger builds a tint or JSON logger for cfg. Unknown levels fall back to
// info.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: redact})
	} else {
		handler = tint.NewHandler(w, &tint.Options{Level: level, ReplaceAttr: redact})
	}

	return slog.New(handler).With(slog.String("service", "donations"))
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if redactedKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}
