package logging

import (
	"github.com/pkg/errors"
)

// Level represents a log level. Its value hierarchy is designed to be ordered
// and comparable by value.
type Level uint

const (
	// LevelDisabled indicates that logging is completely disabled.
	LevelDisabled Level = iota
	// LevelError indicates that only fatal errors are logged.
	LevelError
	// LevelWarn indicates that both fatal and non-fatal errors are logged.
	LevelWarn
	// LevelInfo indicates that basic execution information is logged (in
	// addition to all errors).
	LevelInfo
	// LevelDebug indicates that directory probing, retry scheduling, and other
	// watcher state transitions are logged.
	LevelDebug
	// LevelTrace indicates that individual change notifications are logged.
	LevelTrace
)

// levelNames maps levels to their names. Its order must match the level
// values.
var levelNames = [...]string{
	"disabled",
	"error",
	"warn",
	"info",
	"debug",
	"trace",
}

// NameToLevel converts a string-based representation of a log level to the
// appropriate Level value. It returns a boolean indicating whether or not the
// conversion was valid. If the name is invalid, LevelDisabled is returned.
func NameToLevel(name string) (Level, bool) {
	for l, n := range levelNames {
		if n == name {
			return Level(l), true
		}
	}
	return LevelDisabled, false
}

// String provides a human-readable representation of a log level.
func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// UnmarshalText implements encoding.TextUnmarshaler.UnmarshalText, allowing
// levels to be loaded directly from configuration files.
func (l *Level) UnmarshalText(text []byte) error {
	level, ok := NameToLevel(string(text))
	if !ok {
		return errors.Errorf("unknown log level: %s", text)
	}
	*l = level
	return nil
}

// MarshalText implements encoding.TextMarshaler.MarshalText, allowing levels to
// be saved directly to configuration files.
func (l Level) MarshalText() ([]byte, error) {
	if int(l) >= len(levelNames) {
		return nil, errors.Errorf("unknown log level: %d", l)
	}
	return []byte(levelNames[l]), nil
}
