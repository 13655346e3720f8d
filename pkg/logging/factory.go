package logging

import (
	"context"
	"sync"
)

// LoggerFactory replaces the default logrus-backed logger, e.g. to route log
// lines into a host application's logger.
type LoggerFactory interface {
	CreateLogger(ctx context.Context) Logger
}

var (
	loggerFactoryMu sync.RWMutex
	loggerFactory   LoggerFactory
)

// SetLoggerFactory installs factory for every subsequent NewLogger call. A nil
// factory restores the default logger.
func SetLoggerFactory(factory LoggerFactory) {
	loggerFactoryMu.Lock()
	defer loggerFactoryMu.Unlock()

	loggerFactory = factory
}

func GetLoggerFactory() LoggerFactory {
	loggerFactoryMu.RLock()
	defer loggerFactoryMu.RUnlock()

	return loggerFactory
}

// Fields are attached to every line logged through a context carrying them.
type Fields map[string]any

type fieldsKey struct{}

// WithFields returns a copy of ctx whose loggers include fields in addition
// to any fields already carried by ctx.
func WithFields(ctx context.Context, fields Fields) context.Context {
	merged := Fields{}
	for key, value := range FieldsFrom(ctx) {
		merged[key] = value
	}
	for key, value := range fields {
		merged[key] = value
	}
	return context.WithValue(ctx, fieldsKey{}, merged)
}

func FieldsFrom(ctx context.Context) Fields {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(fieldsKey{}).(Fields)
	return fields
}
