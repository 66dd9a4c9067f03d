// Package logging provides structured logging for the client core.
// Components depend on the Logger interface; the default implementation
// is backed by zerolog writing to stderr.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides leveled, key/value structured logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// zerologLogger implements Logger on top of zerolog.
type zerologLogger struct {
	log zerolog.Logger
}

// New creates a Logger tagged with the given component name.
func New(component string) Logger {
	log := zerolog.New(os.Stderr).With().
		Timestamp().
		Str("component", component).
		Logger()
	return &zerologLogger{log: log}
}

// NewConsole creates a Logger with human-readable console output,
// intended for the bindwatch daemon running in a terminal.
func NewConsole(component string) Logger {
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log := zerolog.New(writer).With().
		Timestamp().
		Str("component", component).
		Logger()
	return &zerologLogger{log: log}
}

// Nop returns a Logger that discards everything. Used in tests.
func Nop() Logger {
	return &zerologLogger{log: zerolog.Nop()}
}

func (l *zerologLogger) Debug(msg string, args ...any) {
	l.emit(l.log.Debug(), msg, args)
}

func (l *zerologLogger) Info(msg string, args ...any) {
	l.emit(l.log.Info(), msg, args)
}

func (l *zerologLogger) Warn(msg string, args ...any) {
	l.emit(l.log.Warn(), msg, args)
}

func (l *zerologLogger) Error(msg string, args ...any) {
	l.emit(l.log.Error(), msg, args)
}

// emit attaches alternating key/value pairs to the event. A trailing
// odd argument is logged under the "extra" key rather than dropped.
func (l *zerologLogger) emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			ev = ev.Interface("arg", args[i])
			continue
		}
		switch v := args[i+1].(type) {
		case string:
			ev = ev.Str(key, v)
		case error:
			if v != nil {
				ev = ev.Str(key, v.Error())
			}
		case int:
			ev = ev.Int(key, v)
		case int64:
			ev = ev.Int64(key, v)
		case bool:
			ev = ev.Bool(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	if len(args)%2 == 1 {
		ev = ev.Interface("extra", args[len(args)-1])
	}
	ev.Msg(msg)
}
