// Package zerologlog routes dbmo diagnostics to a github.com/rs/zerolog logger.
package zerologlog

import (
	"github.com/mirrortom/dbmo"
	"github.com/rs/zerolog"
)

// Adapter 实现 dbmo.Logger 接口，用于集成 zerolog 日志库
type Adapter struct {
	logger zerolog.Logger
}

func New(l zerolog.Logger) *Adapter {
	return &Adapter{logger: l}
}

func (a *Adapter) Log(level dbmo.LogLevel, msg string, fields map[string]any) {
	var event *zerolog.Event
	switch level {
	case dbmo.LevelDebug:
		event = a.logger.Debug()
	case dbmo.LevelInfo:
		event = a.logger.Info()
	case dbmo.LevelWarn:
		event = a.logger.Warn()
	case dbmo.LevelError:
		event = a.logger.Error()
	default:
		event = a.logger.Log()
	}

	if len(fields) > 0 {
		event.Fields(fields)
	}
	event.Msg(msg)
}
