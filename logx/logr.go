package logx

import (
	"errors"

	"github.com/go-logr/logr"

	"go.eggybyte.com/busnode/core/log"
)

// Logr adapts a log.Logger to logr so libraries that log through logr
// (the OpenTelemetry SDK among them) end up in the node's log stream.
// logr V-levels above 0 are treated as debug.
func Logr(l log.Logger) logr.Logger {
	return logr.New(&logrSink{logger: l})
}

type logrSink struct {
	logger log.Logger
	name   string
}

var _ logr.LogSink = (*logrSink)(nil)

func (s *logrSink) Init(logr.RuntimeInfo) {}

func (s *logrSink) Enabled(int) bool { return true }

func (s *logrSink) Info(level int, msg string, kv ...any) {
	l := s.scoped()
	if level > 0 {
		l.Debug(msg, kv...)
		return
	}
	l.Info(msg, kv...)
}

func (s *logrSink) Error(err error, msg string, kv ...any) {
	if err == nil {
		err = errors.New(msg)
	}
	s.scoped().Error(err, msg, kv...)
}

func (s *logrSink) WithValues(kv ...any) logr.LogSink {
	return &logrSink{logger: s.logger.With(kv...), name: s.name}
}

func (s *logrSink) WithName(name string) logr.LogSink {
	if s.name != "" {
		name = s.name + "/" + name
	}
	return &logrSink{logger: s.logger, name: name}
}

func (s *logrSink) scoped() log.Logger {
	if s.name == "" {
		return s.logger
	}
	return s.logger.With("logger", s.name)
}
