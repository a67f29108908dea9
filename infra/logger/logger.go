package logger

import corelogger "github.com/evgrid/fleetsim/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// New returns a Logger for the given component. The output format is
// selected via SetConsole or the FLEETSIM_ENV environment variable.
func New(component string) Logger {
	return NewZerologLogger(component)
}
