package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -----------------------------------------------------------------------------

var (
	baseOnce  sync.Once
	baseLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base      *zap.Logger
)

// levelProvider is satisfied by the application config.
type levelProvider interface {
	LogLevelName() string
}

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name  string
	sugar *zap.SugaredLogger
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance. When config carries a log level the
// shared level is updated, so the first logger built from the loaded config
// decides verbosity for every component.
func NewLogger(config interface{}, name string) *Logger {
	if lp, ok := config.(levelProvider); ok && lp != nil {
		SetLevel(lp.LogLevelName())
	}

	return &Logger{
		name:  name,
		sugar: root().Named(name).Sugar(),
	}
}

// -----------------------------------------------------------------------------

// NewNop returns a logger that discards everything. Used by tests.
func NewNop(name string) *Logger {
	return &Logger{name: name, sugar: zap.NewNop().Sugar()}
}

// -----------------------------------------------------------------------------

// SetLevel changes the level shared by all loggers.
func SetLevel(level string) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		baseLevel.SetLevel(zapcore.DebugLevel)
	case "WARNING", "WARN":
		baseLevel.SetLevel(zapcore.WarnLevel)
	case "ERROR":
		baseLevel.SetLevel(zapcore.ErrorLevel)
	case "":
	default:
		baseLevel.SetLevel(zapcore.InfoLevel)
	}
}

// -----------------------------------------------------------------------------

func root() *zap.Logger {
	baseOnce.Do(func() {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = baseLevel
		cfg.Development = false
		cfg.DisableStacktrace = true
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		l, err := cfg.Build()
		if err != nil {
			fmt.Printf("Warning: failed to build zap logger: %v\n", err)
			l = zap.NewNop()
		}
		base = l
	})
	return base
}

// -----------------------------------------------------------------------------

// Name returns the component name the logger was created with
func (l *Logger) Name() string {
	return l.name
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.sugar.Fatalf(format, args...)
}

// -----------------------------------------------------------------------------

// Sync flushes buffered log entries
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}
