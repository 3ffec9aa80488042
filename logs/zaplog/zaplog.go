// Package zaplog routes dbmo diagnostics to a go.uber.org/zap logger.
package zaplog

import (
	"sort"

	"github.com/mirrortom/dbmo"
	"go.uber.org/zap"
)

// Adapter 实现 dbmo.Logger 接口，用于集成 zap 日志库
type Adapter struct {
	logger *zap.Logger
}

// New wraps l; a nil l falls back to zap.L().
func New(l *zap.Logger) *Adapter {
	if l == nil {
		l = zap.L()
	}
	return &Adapter{logger: l}
}

func (a *Adapter) Log(level dbmo.LogLevel, msg string, fields map[string]any) {
	// 字段按键排序，保证输出稳定
	var zapFields []zap.Field
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		zapFields = make([]zap.Field, 0, len(fields))
		for _, k := range keys {
			zapFields = append(zapFields, zap.Any(k, fields[k]))
		}
	}

	switch level {
	case dbmo.LevelDebug:
		a.logger.Debug(msg, zapFields...)
	case dbmo.LevelInfo:
		a.logger.Info(msg, zapFields...)
	case dbmo.LevelWarn:
		a.logger.Warn(msg, zapFields...)
	default:
		a.logger.Error(msg, zapFields...)
	}
}

// Sync flushes the underlying logger.
func (a *Adapter) Sync() error { return a.logger.Sync() }
