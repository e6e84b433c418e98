// Package logger provides structured, context-aware logging for the
// developer-portal backend, backed by zap. Log entries automatically carry
// trace and span IDs when the request context holds an active span.
package logger

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ================================================================================
// Logger Interface
// ================================================================================

// Logger is the structured logging interface used throughout the service.
type Logger interface {
	// Debug logs a debug message.
	Debug(ctx context.Context, message string, fields ...Field)

	// Info logs an informational message.
	Info(ctx context.Context, message string, fields ...Field)

	// Warn logs a warning message.
	Warn(ctx context.Context, message string, fields ...Field)

	// Error logs an error message with its cause.
	Error(ctx context.Context, message string, err error, fields ...Field)

	// Fatal logs a fatal message and exits.
	Fatal(ctx context.Context, message string, err error, fields ...Field)

	// WithFields returns a logger that always carries the given fields.
	WithFields(fields ...Field) Logger

	// WithComponent returns a logger scoped to a component name.
	WithComponent(component string) Logger
}

// ================================================================================
// Field Constructors
// ================================================================================

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 creates an int64 field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Float64 creates a float64 field.
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

// Bool creates a bool field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Time creates a time field in RFC3339 format.
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value.Format(time.RFC3339)}
}

// Any creates a field of any type.
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// ================================================================================
// Zap Implementation
// ================================================================================

type zapLogger struct {
	base *zap.Logger
}

// NewZapLogger creates a JSON zap-backed logger at the given level.
func NewZapLogger(level string) (Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		parsed = zapcore.InfoLevel
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		parsed,
	)

	return &zapLogger{base: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))}, nil
}

// NewDefaultLogger creates an info-level logger. Intended for startup code and
// tests that do not care about log configuration.
func NewDefaultLogger() Logger {
	l, _ := NewZapLogger("info")
	return l
}

func (l *zapLogger) Debug(ctx context.Context, message string, fields ...Field) {
	l.base.Debug(message, l.convert(ctx, fields)...)
}

func (l *zapLogger) Info(ctx context.Context, message string, fields ...Field) {
	l.base.Info(message, l.convert(ctx, fields)...)
}

func (l *zapLogger) Warn(ctx context.Context, message string, fields ...Field) {
	l.base.Warn(message, l.convert(ctx, fields)...)
}

func (l *zapLogger) Error(ctx context.Context, message string, err error, fields ...Field) {
	zapFields := l.convert(ctx, fields)
	if err != nil {
		zapFields = append(zapFields, zap.Error(err))
	}
	l.base.Error(message, zapFields...)
}

func (l *zapLogger) Fatal(ctx context.Context, message string, err error, fields ...Field) {
	zapFields := l.convert(ctx, fields)
	if err != nil {
		zapFields = append(zapFields, zap.Error(err))
	}
	l.base.Fatal(message, zapFields...)
}

func (l *zapLogger) WithFields(fields ...Field) Logger {
	zapFields := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		zapFields = append(zapFields, zap.Any(f.Key, f.Value))
	}
	return &zapLogger{base: l.base.With(zapFields...)}
}

func (l *zapLogger) WithComponent(component string) Logger {
	return &zapLogger{base: l.base.With(zap.String("component", component))}
}

func (l *zapLogger) convert(ctx context.Context, fields []Field) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields)+2)

	if ctx != nil {
		if span := trace.SpanContextFromContext(ctx); span.IsValid() {
			zapFields = append(zapFields,
				zap.String("trace_id", span.TraceID().String()),
				zap.String("span_id", span.SpanID().String()),
			)
		}
	}

	for _, f := range fields {
		zapFields = append(zapFields, zap.Any(f.Key, f.Value))
	}
	return zapFields
}
