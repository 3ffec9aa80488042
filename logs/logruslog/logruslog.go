// Package logruslog routes dbmo diagnostics to a github.com/sirupsen/logrus logger.
package logruslog

import (
	"github.com/mirrortom/dbmo"
	"github.com/sirupsen/logrus"
)

// Adapter 实现 dbmo.Logger 接口，用于集成 logrus 日志库
type Adapter struct {
	logger *logrus.Logger
}

// New wraps l; a nil l uses logrus.StandardLogger().
func New(l *logrus.Logger) *Adapter {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &Adapter{logger: l}
}

func (a *Adapter) Log(level dbmo.LogLevel, msg string, fields map[string]any) {
	entry := a.logger.WithFields(logrus.Fields(fields))
	switch level {
	case dbmo.LevelDebug:
		entry.Debug(msg)
	case dbmo.LevelInfo:
		entry.Info(msg)
	case dbmo.LevelWarn:
		entry.Warn(msg)
	default:
		entry.Error(msg)
	}
}
