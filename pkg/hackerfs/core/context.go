package core

// Logger interface abstracts structured logging
type Logger interface {
	Info() LogEvent
	Debug() LogEvent
	Warn() LogEvent
	Error() LogEvent
	Trace() LogEvent
}

// LogEvent interface for structured logging
type LogEvent interface {
	Str(key, val string) LogEvent
	Int(key string, val int) LogEvent
	Err(err error) LogEvent
	Bool(key string, val bool) LogEvent
	Interface(key string, val interface{}) LogEvent
	Msg(msg string)
}

// NopLogger discards everything. Useful as a default so callers never
// have to nil-check the logger.
type NopLogger struct{}

func (NopLogger) Info() LogEvent  { return nopEvent{} }
func (NopLogger) Debug() LogEvent { return nopEvent{} }
func (NopLogger) Warn() LogEvent  { return nopEvent{} }
func (NopLogger) Error() LogEvent { return nopEvent{} }
func (NopLogger) Trace() LogEvent { return nopEvent{} }

type nopEvent struct{}

func (e nopEvent) Str(string, string) LogEvent            { return e }
func (e nopEvent) Int(string, int) LogEvent               { return e }
func (e nopEvent) Err(error) LogEvent                     { return e }
func (e nopEvent) Bool(string, bool) LogEvent             { return e }
func (e nopEvent) Interface(string, interface{}) LogEvent { return e }
func (e nopEvent) Msg(string)                             {}
