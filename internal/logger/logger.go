package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var _log = logrus.New()

// Init configures the shared logger. Debug mode switches to human readable
// text output; otherwise entries are emitted as JSON for log shipping.
func Init(debug bool, out io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	_log.SetOutput(out)
	if debug {
		_log.SetLevel(logrus.DebugLevel)
		_log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	_log.SetLevel(logrus.InfoLevel)
	_log.SetFormatter(&logrus.JSONFormatter{})
}

// SetLevel overrides the level parsed from name ("warn", "error", ...).
// Unknown names leave the current level untouched.
func SetLevel(name string) {
	if name == "" {
		return
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(name))
	if err != nil {
		_log.WithField("level", name).Warn("unknown log level, keeping current")
		return
	}
	_log.SetLevel(lvl)
}

// Log returns a standard logger entry to use across packages.
func Log() *logrus.Entry {
	return logrus.NewEntry(_log)
}

// WithFields returns a logger entry with provided fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log().WithFields(fields)
}

// Component tags entries with the subsystem that produced them.
func Component(name string) *logrus.Entry {
	return Log().WithField("component", name)
}
