package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/bittoy/reactor/types"
)

// LogrusLogger adapts a *logrus.Logger to types.Logger, for use via
// types.WithLogger; a context built without that option logs to
// types.NopLogger instead (spec §4.B ambient stack; mirrors the teacher's
// Config.Logger field, types/config.go).
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps l, or logrus.StandardLogger() if l is nil.
func NewLogrusLogger(l *logrus.Logger) *LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

func (l *LogrusLogger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *LogrusLogger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *LogrusLogger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *LogrusLogger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

var _ types.Logger = (*LogrusLogger)(nil)
