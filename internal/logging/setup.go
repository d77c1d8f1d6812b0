package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the backend and sinks for New.
type Options struct {
	// Format is "text", "json" (both slog) or "zap".
	Format string
	// Level is debug, info, warn or error.
	Level string
	// File, when set, receives a copy of every entry and is rotated by size.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// New builds a Logger from opts. The returned closer flushes and releases
// the rotating file, if any.
func New(opts Options) (Logger, io.Closer, error) {
	var w io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)

	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		w = io.MultiWriter(os.Stderr, rotating)
		closer = rotating
	}

	switch strings.ToLower(opts.Format) {
	case "", "text":
		h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel(opts.Level)})
		return NewSlogLogger(slog.New(h)), closer, nil
	case "json":
		h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel(opts.Level)})
		return NewSlogLogger(slog.New(h)), closer, nil
	case "zap":
		lvl, err := zapcore.ParseLevel(levelOrInfo(opts.Level))
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		return NewZapJSON(w, lvl), closer, nil
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
}

func levelOrInfo(s string) string {
	if s == "" {
		return "info"
	}
	return strings.ToLower(s)
}

func slogLevel(s string) slog.Level {
	switch levelOrInfo(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
