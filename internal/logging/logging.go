// Package logging sets up the slog logger shared by every command.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tablewright/tablewright/internal/config"
)

const filePrefix = "tablewright-"

// Setup initializes the logger with a dated log file next to console
// output, and prunes log files older than the retention window.
func Setup(cfg config.LogConfig, console io.Writer) (*slog.Logger, error) {
	directory := cfg.Directory
	if directory == "" {
		directory = "~/.tablewright/logs/"
	}
	directory = config.ExpandHome(directory)

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	if cfg.RetentionDays > 0 {
		if err := prune(directory, time.Now().AddDate(0, 0, -cfg.RetentionDays)); err != nil {
			return nil, err
		}
	}

	filename := fmt.Sprintf("%s%s.log", filePrefix, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(directory, filename), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	writer := io.Writer(file)
	if console != nil {
		writer = io.MultiWriter(console, file)
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	})
	return slog.New(handler), nil
}

// ParseLevel maps a configured level name to a slog level; unknown
// names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// prune removes log files dated before cutoff.
func prune(directory string, cutoff time.Time) error {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return fmt.Errorf("reading log directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		day, err := time.Parse("2006-01-02", strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), ".log"))
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			if err := os.Remove(filepath.Join(directory, name)); err != nil {
				return fmt.Errorf("removing old log %s: %w", name, err)
			}
		}
	}
	return nil
}
