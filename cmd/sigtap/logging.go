package main

import (
	"log/slog"
	"os"
	"strings"
)

// setupLogger builds the process logger from the logging config section.
// Unknown levels and formats fall back to info and text.
func setupLogger(level, format string, addSource bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource || lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		"service", appName,
		"version", Version,
		"pid", os.Getpid(),
	)
}
