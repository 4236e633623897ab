package main

import (
	"context"
	"strings"

	"github.com/goliatone/go-identity"
	"github.com/goliatone/go-identity/activitymap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newZapLogger(cfg LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	// stdout carries command output
	zcfg.OutputPaths = []string{"stderr"}

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zcfg.Build()
}

// zapLogger adapts a SugaredLogger to identity.Logger. Calls with a format
// verb go through the printf variants, the rest are treated as key/value pairs.
type zapLogger struct {
	s *zap.SugaredLogger
}

var _ identity.Logger = zapLogger{}

func newLoggerAdapter(l *zap.Logger) zapLogger {
	return zapLogger{s: l.Sugar()}
}

func (l zapLogger) Debug(format string, args ...any) {
	if isPrintf(format, args) {
		l.s.Debugf(format, args...)
		return
	}
	l.s.Debugw(format, args...)
}

func (l zapLogger) Info(format string, args ...any) {
	if isPrintf(format, args) {
		l.s.Infof(format, args...)
		return
	}
	l.s.Infow(format, args...)
}

func (l zapLogger) Warn(format string, args ...any) {
	if isPrintf(format, args) {
		l.s.Warnf(format, args...)
		return
	}
	l.s.Warnw(format, args...)
}

func (l zapLogger) Error(format string, args ...any) {
	if isPrintf(format, args) {
		l.s.Errorf(format, args...)
		return
	}
	l.s.Errorw(format, args...)
}

func isPrintf(format string, args []any) bool {
	return len(args) > 0 && strings.Contains(format, "%")
}

// activityLogger writes normalized activity records to the log
func activityLogger(l *zap.Logger) identity.ActivitySink {
	return identity.ActivitySinkFunc(func(_ context.Context, evt identity.ActivityEvent) error {
		rec := activitymap.Normalize(evt)
		fields := []zap.Field{
			zap.String("verb", rec.Verb),
			zap.String("actor_id", rec.ActorID),
			zap.String("object_type", rec.ObjectType),
			zap.String("object_id", rec.ObjectID),
			zap.String("channel", rec.Channel),
			zap.Time("occurred_at", rec.OccurredAt),
		}
		for k, v := range rec.Metadata {
			fields = append(fields, zap.Any(k, v))
		}
		l.Info("identity activity", fields...)
		return nil
	})
}
