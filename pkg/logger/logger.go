// Package logger wraps zap with helpers that stamp every entry with the
// request, trace and tenant ids found in the context.
package logger

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appctx "retailops/internal/core/context"
	"retailops/internal/core/tenant"
)

// Logger is a sugared zap logger.
type Logger struct {
	*zap.SugaredLogger
}

// Config selects level and encoding.
type Config struct {
	Level       string // debug, info, warn, error; unknown values mean info
	Development bool   // colored console output instead of JSON
	Service     string // added as "service" to every entry when set
}

// New builds a Logger from cfg.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	opts := []zap.Option{zap.AddCallerSkip(1)}
	if cfg.Service != "" {
		opts = append(opts, zap.Fields(zap.String("service", cfg.Service)))
	}
	z, err := zc.Build(opts...)
	if err != nil {
		return nil, err
	}
	return FromZap(z), nil
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{z.Sugar()}
}

// Nop discards everything.
func Nop() *Logger {
	return FromZap(zap.NewNop())
}

var defaultLogger atomic.Pointer[Logger]

// SetDefault installs l as the logger used by the package-level helpers.
func SetDefault(l *Logger) {
	defaultLogger.Store(l)
}

func current() *Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := FromZap(zap.Must(zap.NewProduction(zap.AddCallerSkip(1))))
	if defaultLogger.CompareAndSwap(nil, l) {
		return l
	}
	return defaultLogger.Load()
}

// WithContext returns l enriched with the ids carried by ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var kv []any
	if tc := appctx.GetTrace(ctx); tc != nil {
		kv = append(kv, "trace_id", tc.TraceID, "request_id", tc.RequestID)
	}
	if tenantID := tenant.ID(ctx); tenantID != "" {
		kv = append(kv, "tenant_id", tenantID)
	}
	if len(kv) == 0 {
		return l
	}
	return &Logger{l.SugaredLogger.With(kv...)}
}

// WithComponent tags entries with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{l.SugaredLogger.With("component", name)}
}

func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	current().WithContext(ctx).Debugw(msg, keysAndValues...)
}

func Info(ctx context.Context, msg string, keysAndValues ...any) {
	current().WithContext(ctx).Infow(msg, keysAndValues...)
}

func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	current().WithContext(ctx).Warnw(msg, keysAndValues...)
}

func Error(ctx context.Context, msg string, keysAndValues ...any) {
	current().WithContext(ctx).Errorw(msg, keysAndValues...)
}
