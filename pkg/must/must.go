// Package must provides best-effort cleanup helpers that log, rather than
// return, any failure. They're intended for deferred cleanup paths where the
// caller has no better way to handle an error.
package must

import (
	"io"
	"os"

	"github.com/mutagen-io/filemonitor/pkg/logging"
)

// Close closes c and logs any failure as a warning.
func Close(c io.Closer, logger *logging.Logger) {
	if err := c.Close(); err != nil {
		logger.Warnf("Unable to close: %s", err.Error())
	}
}

// OSRemove removes the named filesystem entry and logs any failure as a
// warning.
func OSRemove(name string, logger *logging.Logger) {
	if err := os.Remove(name); err != nil {
		logger.Warnf("Unable to remove '%s': %s", name, err.Error())
	}
}

// Succeed logs err as a warning if it is non-nil. The task describes what was
// being attempted.
func Succeed(err error, task string, logger *logging.Logger) {
	if err != nil {
		logger.Warnf("Unable to succeed at %s; %s", task, err.Error())
	}
}
