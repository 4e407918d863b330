// Package logx is the ambient structured-logging layer: one logrus logger
// per subsystem, every entry carrying the caller location the way the
// teacher's modules/trace.Errorf stitches runtime.Caller into its output.
package logx

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Entry pre-tagged with a subsystem name.
type Logger struct {
	entry *logrus.Entry
}

var base = logrus.New()

func init() {
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// For returns the logger for a named subsystem (e.g. "backend", "checkout",
// "state").
func For(subsystem string) Logger {
	return Logger{entry: base.WithField("subsystem", subsystem)}
}

func location(skip int) (file string, line int) {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "???", 0
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		if i := strings.LastIndexByte(file, '/'); i >= 0 {
			file = file[i+1:]
		}
	}
	return file, line
}

// Errorf logs a structured error event (subsystem, op, file:line) and
// returns a plain error carrying the same message, mirroring the
// teacher's trace package Errorf.
func (l Logger) Errorf(op, format string, a ...any) error {
	file, line := location(2)
	msg := fmt.Sprintf(format, a...)
	l.entry.WithFields(logrus.Fields{
		"op":   op,
		"site": fmt.Sprintf("%s:%d", file, line),
	}).Error(msg)
	return fmt.Errorf("%s: %s", op, msg)
}

// Debugf logs at debug level with the same op/site fields.
func (l Logger) Debugf(op, format string, a ...any) {
	file, line := location(2)
	l.entry.WithFields(logrus.Fields{
		"op":   op,
		"site": fmt.Sprintf("%s:%d", file, line),
	}).Debugf(format, a...)
}

// WithDigest attaches a digest field, for the common "error return from a
// backend operation" shape.
func (l Logger) WithDigest(digest fmt.Stringer) Logger {
	return Logger{entry: l.entry.WithField("digest", digest.String())}
}

func (l Logger) WithPath(path string) Logger {
	return Logger{entry: l.entry.WithField("path", path)}
}
