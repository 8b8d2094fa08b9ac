// Package zapadapter provides a request scoped logger that writes to a go.uber.org/zap.Logger.
package zapadapter

import (
	"context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"sort"
)

type key string

var idKey key

type Logger struct {
	logger *zap.Logger
}

func NewContextWithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey, id)
}

func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(idKey).(string)
	return id, ok
}

func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

// Log writes msg with data as fields, prefixed with request id found in ctx
func (l *Logger) Log(ctx context.Context, level zapcore.Level, msg string, data map[string]interface{}) {
	id, ok := IDFromContext(ctx)

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zapcore.Field, 0, len(data)+1)
	if ok {
		fields = append(fields, zap.String("request_id", id))
	}
	for _, k := range keys {
		fields = append(fields, zap.Any(k, data[k]))
	}

	switch level {
	case zapcore.DebugLevel:
		l.logger.Debug(msg, fields...)
	case zapcore.InfoLevel:
		l.logger.Info(msg, fields...)
	case zapcore.WarnLevel:
		l.logger.Warn(msg, fields...)
	case zapcore.ErrorLevel:
		l.logger.Error(msg, fields...)
	default:
		l.logger.Error(msg, append(fields, zap.Stringer("LOG_LEVEL", level))...)
	}
}
