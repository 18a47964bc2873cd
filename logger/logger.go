package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured log attribute.
type Field = zap.Field

// Logger is the narrow logging surface used throughout the codebase.
type Logger interface {
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

func String(key, val string) Field        { return zap.String(key, val) }
func Float64(key string, v float64) Field { return zap.Float64(key, v) }
func Int(key string, v int) Field         { return zap.Int(key, v) }
func Err(err error) Field                 { return zap.Error(err) }

// zapLogger implements Logger on top of a structured zap.Logger.
type zapLogger struct {
	z *zap.Logger
}

func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

// Sync flushes buffered entries. Call it before the process exits.
func (l *zapLogger) Sync() error { return l.z.Sync() }

// NewZapLogger creates a production-ready logger (JSON encoding, level INFO).
func NewZapLogger() (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{z: z}, nil
}

// Wrap adapts an existing zap logger.
func Wrap(z *zap.Logger) Logger { return &zapLogger{z: z} }

// Sync flushes l when it buffers entries and is a no-op otherwise.
func Sync(l Logger) error {
	if s, ok := l.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// Nop discards everything.
func Nop() Logger { return &zapLogger{z: zap.NewNop()} }
