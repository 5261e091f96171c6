package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// SetupLogging installs the global slog logger for the output mode in args.
// Returns the log file handle (caller must close it) or nil if no file
func SetupLogging(args Args) (*os.File, error) {
	var logFile *os.File
	if args.Log != "" {
		f, err := os.OpenFile(args.Log, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", args.Log, err)
		}
		logFile = f
	}

	mode := args.OutputMode()
	slog.SetDefault(newLogger(mode, logWriter(mode, logFile, os.Stderr), parseLogLevel(args.LogLevel)))
	return logFile, nil
}

// logWriter picks the log destination. The TUI owns the terminal, so in that
// mode logs only go to the file, if any.
func logWriter(mode string, file io.Writer, stderr io.Writer) io.Writer {
	var writers []io.Writer
	if file != nil {
		writers = append(writers, file)
	}
	if mode != "tui" {
		writers = append(writers, stderr)
	}

	switch len(writers) {
	case 0:
		return io.Discard
	case 1:
		return writers[0]
	default:
		return io.MultiWriter(writers...)
	}
}

func newLogger(mode string, w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	// JSON output gets JSON-formatted logs so both streams stay machine readable
	if mode == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// parseLogLevel converts string to slog.Level
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
