// Package logging provides structured, level-gated logging for the
// logsink client, backed by go.uber.org/zap.
package logging

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the available log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Config holds logging configuration.
type Config struct {
	Level LogLevel
	// Format selects the zap encoder: "json" or "text" (console).
	Format string
	Output io.Writer
	// Sync forces a flush after every log call. Useful in tests that
	// assert on buffered output.
	Sync bool
	// NoColor disables ANSI color codes in the console encoder.
	NoColor bool
}

// DefaultConfig returns a sensible default configuration: text encoder,
// info level, stderr output.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// Logger wraps a zap.SugaredLogger with the key-value call shape the rest
// of this module uses (Debug/Info/Warn/Error accepting alternating
// key-value pairs, plus printf-style *f variants).
type Logger struct {
	sugar *zap.SugaredLogger
	sync  bool
}

func buildEncoder(cfg *Config) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Format == "json" {
		return zapcore.NewJSONEncoder(encCfg)
	}
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if !cfg.NoColor {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(encCfg)
}

// NewLogger creates a new Logger from the given configuration. A nil
// configuration falls back to DefaultConfig().
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	core := zapcore.NewCore(buildEncoder(config), zapcore.AddSync(output), config.Level.zapLevel())
	zl := zap.New(core)
	return &Logger{sugar: zl.Sugar(), sync: config.Sync}
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

func (l *Logger) maybeSync() {
	if l.sync {
		_ = l.sugar.Sync()
	}
}

func (l *Logger) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
	l.maybeSync()
}

func (l *Logger) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
	l.maybeSync()
}

func (l *Logger) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
	l.maybeSync()
}

func (l *Logger) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
	l.maybeSync()
}

func (l *Logger) Debugf(format string, args ...any) {
	l.sugar.Debugf(format, args...)
	l.maybeSync()
}

func (l *Logger) Infof(format string, args ...any) {
	l.sugar.Infof(format, args...)
	l.maybeSync()
}

func (l *Logger) Warnf(format string, args ...any) {
	l.sugar.Warnf(format, args...)
	l.maybeSync()
}

func (l *Logger) Errorf(format string, args ...any) {
	l.sugar.Errorf(format, args...)
	l.maybeSync()
}

// Printf exists for compatibility with code expecting a printf-only logger.
func (l *Logger) Printf(format string, args ...any) {
	l.Infof(format, args...)
}

// With returns a child logger carrying the given key-value pairs on every
// subsequent call.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{sugar: l.sugar.With(args...), sync: l.sync}
}

// WithPid returns a child logger scoped to a producer process id.
func (l *Logger) WithPid(pid int) *Logger {
	return l.With("pid", pid)
}

// WithSession returns a child logger scoped to a handshake/session id.
func (l *Logger) WithSession(sessionID string) *Logger {
	return l.With("session", sessionID)
}

// WithError returns a child logger carrying an error field.
func (l *Logger) WithError(err error) *Logger {
	return l.With("error", err)
}

// Global convenience functions operating on the default logger.

func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
