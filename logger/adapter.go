package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// event wraps a zerolog event. A nil filter, as used by Disabled, skips masking.
type event struct {
	e      *zerolog.Event
	filter *SensitiveDataFilter
}

func (ev event) Str(key, value string) LogEvent {
	if ev.filter != nil {
		value = ev.filter.FilterString(key, value)
	}
	ev.e.Str(key, value)
	return ev
}

func (ev event) Int(key string, value int) LogEvent {
	ev.e.Int(key, value)
	return ev
}

// Dur writes d in milliseconds, zerolog's default duration unit.
func (ev event) Dur(key string, d time.Duration) LogEvent {
	ev.e.Dur(key, d)
	return ev
}

// Any masks header and field maps before encoding value as JSON.
func (ev event) Any(key string, value any) LogEvent {
	if ev.filter != nil {
		value = ev.filter.FilterValue(key, value)
	}
	ev.e.Interface(key, value)
	return ev
}

func (ev event) Err(err error) LogEvent {
	ev.e.Err(err)
	return ev
}

func (ev event) Msg(msg string) {
	ev.e.Msg(msg)
}

func (ev event) Msgf(format string, args ...any) {
	ev.e.Msgf(format, args...)
}

func (l *ZeroLogger) Debug() LogEvent { return l.newEvent(l.zlog.Debug()) }
func (l *ZeroLogger) Info() LogEvent  { return l.newEvent(l.zlog.Info()) }
func (l *ZeroLogger) Warn() LogEvent  { return l.newEvent(l.zlog.Warn()) }
func (l *ZeroLogger) Error() LogEvent { return l.newEvent(l.zlog.Error()) }

func (l *ZeroLogger) newEvent(e *zerolog.Event) LogEvent {
	return event{e: e, filter: l.filter}
}
