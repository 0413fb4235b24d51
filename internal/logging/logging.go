package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"marker-sweep/internal/config"
)

// New creates a console logger on stderr at info level.
func New() zerolog.Logger {
	return NewWriter(os.Stderr, zerolog.InfoLevel)
}

// NewWriter creates a console logger for w at the given level.
func NewWriter(w io.Writer, level zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}
	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// NewWithConfig creates a logger from the logging section of cfg. When a log
// file is configured it is rotated by age and receives JSON lines alongside
// the console output. The returned closer releases the file.
func NewWithConfig(cfg *config.Config) (zerolog.Logger, io.Closer) {
	level := zerolog.InfoLevel
	if cfg != nil {
		if l, err := zerolog.ParseLevel(strings.ToLower(cfg.Logging.Level)); err == nil {
			level = l
		}
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339, NoColor: true}
	if cfg == nil || cfg.Logging.File == "" {
		return zerolog.New(console).Level(level).With().Timestamp().Logger(), nopCloser{}
	}

	filePath := cfg.Logging.File
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		l := zerolog.New(console).Level(level).With().Timestamp().Logger()
		l.Warn().Err(err).Str("dir", filepath.Dir(filePath)).Msg("failed to ensure log directory")
		return l, nopCloser{}
	}

	rotateLogsIfNeeded(filePath, cfg.Logging.RotationDays)

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		l := zerolog.New(console).Level(level).With().Timestamp().Logger()
		l.Warn().Err(err).Str("file", filePath).Msg("failed to open log file")
		return l, nopCloser{}
	}

	mw := zerolog.MultiLevelWriter(console, f)
	return zerolog.New(mw).Level(level).With().Timestamp().Logger(), f
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// rotateLogsIfNeeded renames the log once it is older than rotationDays
func rotateLogsIfNeeded(logPath string, rotationDays int) {
	if rotationDays <= 0 {
		return
	}
	info, err := os.Stat(logPath)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)
	if !info.ModTime().Before(cutoffTime) {
		return
	}

	timestamp := info.ModTime().Format("20060102-150405")
	if err := os.Rename(logPath, logPath+"."+timestamp); err != nil {
		return
	}

	cleanupOldLogs(logPath, rotationDays)
}

// cleanupOldLogs removes rotated siblings older than rotationDays
func cleanupOldLogs(logPath string, rotationDays int) {
	logDir := filepath.Dir(logPath)
	prefix := filepath.Base(logPath) + "."

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoffTime) {
			_ = os.Remove(filepath.Join(logDir, entry.Name()))
		}
	}
}
