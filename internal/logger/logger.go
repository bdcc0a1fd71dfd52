package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger  *slog.Logger
	logFile *os.File
)

// Init initializes the logger with the specified verbose level.
// When dir is non-empty, log output goes to greenlight.log under dir
// instead of stderr. A zap global with the same sink and level is
// installed alongside, so the context logger's zap.L() fallback stays
// coherent with the package-level functions.
func Init(verbose bool, dir string) {
	level := slog.LevelWarn
	zapLevel := zapcore.WarnLevel
	if verbose {
		level = slog.LevelDebug
		zapLevel = zapcore.DebugLevel
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var out io.Writer = os.Stderr
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err == nil {
			f, err := os.OpenFile(filepath.Join(dir, "greenlight.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				logFile = f
				out = f
			}
		}
	}

	handler := slog.NewJSONHandler(out, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(out),
		zapLevel,
	)
	zap.ReplaceGlobals(zap.New(core))
}

// Close releases the log file if one was opened by Init.
func Close() {
	_ = zap.L().Sync()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	if logger != nil {
		logger.Debug(msg, args...)
	}
}

// Info logs an info message
func Info(msg string, args ...any) {
	if logger != nil {
		logger.Info(msg, args...)
	}
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

// Error logs an error message
func Error(msg string, args ...any) {
	if logger != nil {
		logger.Error(msg, args...)
	}
}
