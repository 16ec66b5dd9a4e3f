package types

// Logger is the structured-logging contract every component logs through,
// reached via Context.Logger(). Mirrors the teacher's Config.Logger field;
// the default is NopLogger, and engine.NewLogrusLogger supplies a concrete
// implementation to pass via WithLogger (DESIGN.md says why logrus and not
// stdlib log).
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger discards everything. Used when no logger is configured and as
// a safe zero value — never nil-checked by callers.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
