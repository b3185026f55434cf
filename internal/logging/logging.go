// Package logging provides the small leveled wrapper around stdlib
// log used across the tracker, storage peer, and gateway binaries.
// The core packages themselves never log; only the cmd/ services do.
package logging

import (
	"log"
	"os"
)

// Logger is a minimal leveled logger. It exists because the three
// services need a consistent "[component] " prefix and an on/off
// debug switch, not because the diagnostics need structure beyond
// that.
type Logger struct {
	component string
	debug     bool
	std       *log.Logger
}

// New creates a Logger for the given component name, writing to stderr.
func New(component string) *Logger {
	return &Logger{
		component: component,
		debug:     os.Getenv("DEBUG") != "",
		std:       log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.std.Printf("INFO  ["+l.component+"] "+format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.std.Printf("WARN  ["+l.component+"] "+format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.std.Printf("ERROR ["+l.component+"] "+format, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.std.Printf("DEBUG ["+l.component+"] "+format, args...)
}
