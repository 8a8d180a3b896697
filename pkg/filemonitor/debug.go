package filemonitor

import (
	"os"
)

// DebugEnabled controls whether or not debug logging is enabled by default. It
// is set automatically based on the FILEMONITOR_DEBUG environment variable.
var DebugEnabled bool

func init() {
	// Check whether or not debugging should be enabled.
	DebugEnabled = os.Getenv("FILEMONITOR_DEBUG") == "1"
}
