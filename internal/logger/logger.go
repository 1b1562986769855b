// Package logger provides structured slog loggers for the service. All logs
// are written in JSON format; when a log file is configured, output is
// duplicated to a size-rotated file.
package logger

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a JSON slog.Logger writing to stderr. When logFile is non-empty
// the same records also go to a rotated file at that path.
func New(logFile string, level slog.Level) *slog.Logger {
	var w io.Writer = os.Stderr
	if logFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		w = io.MultiWriter(os.Stderr, rotated)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
