package monitoring

import (
	"sync/atomic"

	"github.com/mutagen-io/filemonitor/pkg/logging"
)

// shared is the process-wide monitor.
var shared atomic.Pointer[Monitor]

// Shared returns the process-wide monitor, creating it on first use with the
// default configuration. Every caller observes the same instance.
func Shared() *Monitor {
	// Check for an existing monitor.
	if monitor := shared.Load(); monitor != nil {
		return monitor
	}

	// Attempt to publish a new monitor. If another caller wins the race, then
	// our candidate is discarded, which is safe because creation doesn't start
	// any Goroutines.
	candidate := NewMonitor(nil, logging.RootLogger.Sublogger("monitoring"))
	if shared.CompareAndSwap(nil, candidate) {
		return candidate
	}
	return shared.Load()
}
