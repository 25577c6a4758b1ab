package logger

import (
	"io"
	"log/slog"

	"buybot/internal/app/port"
)

// slogAdapter implements port.Logger over an *slog.Logger.
// A nil inner logger routes to the package-level global.
type slogAdapter struct {
	l *slog.Logger
}

// Named returns a port.Logger tagged with a component attribute.
func Named(component string) port.Logger {
	ensureInitialized()
	return &slogAdapter{l: globalLogger.With("component", component)}
}

// Nop discards everything. Handy in tests.
func Nop() port.Logger {
	return &slogAdapter{l: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (a *slogAdapter) Info(msg string, args ...any) {
	if a.l == nil {
		Info(msg, args...)
		return
	}
	a.l.Info(msg, args...)
}

func (a *slogAdapter) Debug(msg string, args ...any) {
	if a.l == nil {
		Debug(msg, args...)
		return
	}
	a.l.Debug(msg, args...)
}

func (a *slogAdapter) Warn(msg string, args ...any) {
	if a.l == nil {
		Warn(msg, args...)
		return
	}
	a.l.Warn(msg, args...)
}

func (a *slogAdapter) Error(msg string, args ...any) {
	if a.l == nil {
		Error(msg, args...)
		return
	}
	a.l.Error(msg, args...)
}
