// Package monitoring holds the process-wide diagnostic logger and the
// prometheus collectors shared by the control loop, the capture workers and
// the car server.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// is swapped out by SetLogger, usually from tests that want quiet output or
// want to count log lines.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Discard mutes Logf and returns a func that restores the previous logger.
func Discard() (restore func()) {
	prev := Logf
	SetLogger(nil)
	return func() { Logf = prev }
}
