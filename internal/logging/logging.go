// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
)

// Init configures slog with a text handler writing to both stdout and the
// given log file. It returns the logger and the opened file so the caller can
// Close() on shutdown. An empty path disables the file and logs to stdout only.
func Init(path string, debug bool) (*slog.Logger, *os.File) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	if path == "" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})), nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
		logger.Error("failed to open log file, falling back to stdout only", "path", path, "error", err)
		return logger, nil
	}

	mw := io.MultiWriter(f, os.Stdout)
	logger := slog.New(slog.NewTextHandler(mw, &slog.HandlerOptions{Level: level}))

	// Route legacy stdlib log output (paho's internal logging) the same way.
	log.SetOutput(mw)
	return logger, f
}
