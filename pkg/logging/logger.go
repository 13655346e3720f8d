package logging

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
}

var (
	baseLoggerMu sync.RWMutex
	baseLogger   = logrus.New()
)

type logrusLogger struct {
	entry *logrus.Entry
}

func (l *logrusLogger) Debug(args ...any) {
	l.entry.Debug(args...)
}

func (l *logrusLogger) Debugf(format string, args ...any) {
	l.entry.Debugf(format, args...)
}

func (l *logrusLogger) Info(args ...any) {
	l.entry.Info(args...)
}

func (l *logrusLogger) Infof(format string, args ...any) {
	l.entry.Infof(format, args...)
}

func (l *logrusLogger) Error(args ...any) {
	l.entry.Error(args...)
}

func (l *logrusLogger) Errorf(format string, args ...any) {
	l.entry.Errorf(format, args...)
}

func (l *logrusLogger) Warn(args ...any) {
	l.entry.Warn(args...)
}

func (l *logrusLogger) Warnf(format string, args ...any) {
	l.entry.Warnf(format, args...)
}

func (l *logrusLogger) Fatal(args ...any) {
	l.entry.Fatal(args...)
}

func (l *logrusLogger) Fatalf(format string, args ...any) {
	l.entry.Fatalf(format, args...)
}

func NewLogger(ctx context.Context) Logger {
	factory := GetLoggerFactory()
	if factory != nil {
		return factory.CreateLogger(ctx)
	}

	return newLogrusLogger(ctx)
}

// SetLevel parses a logrus level name such as "debug" or "info" and applies
// it to the default logger. Unknown names leave the level unchanged.
func SetLevel(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	baseLoggerMu.Lock()
	defer baseLoggerMu.Unlock()
	baseLogger.SetLevel(parsed)
	return nil
}

// SetFormat switches the default logger between "text" and "json" output.
func SetFormat(format string) {
	baseLoggerMu.Lock()
	defer baseLoggerMu.Unlock()

	if format == "json" {
		baseLogger.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	baseLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func SetOutput(w io.Writer) {
	baseLoggerMu.Lock()
	defer baseLoggerMu.Unlock()
	baseLogger.SetOutput(w)
}

func newLogrusLogger(ctx context.Context) Logger {
	baseLoggerMu.RLock()
	defer baseLoggerMu.RUnlock()
	entry := baseLogger.WithContext(ctx)
	if fields := FieldsFrom(ctx); len(fields) > 0 {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	return &logrusLogger{entry: entry}
}
