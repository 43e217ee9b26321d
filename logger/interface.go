// Package logger is the structured logging facade of agentlink, backed by
// zerolog. Field values pass through a SensitiveDataFilter so bearer tokens
// and URL passwords are masked before they are written.
package logger

import "time"

// Logger hands out leveled events.
type Logger interface {
	Debug() LogEvent
	Info() LogEvent
	Warn() LogEvent
	Error() LogEvent
	WithFields(fields map[string]any) Logger
}

// LogEvent is a pending log line; nothing is written until Msg or Msgf.
type LogEvent interface {
	Str(key, value string) LogEvent
	Int(key string, value int) LogEvent
	Dur(key string, d time.Duration) LogEvent
	Any(key string, value any) LogEvent
	Err(err error) LogEvent
	Msg(msg string)
	Msgf(format string, args ...any)
}
