package monitoring

// State is the state of a directory watcher.
type State uint8

const (
	// StateUnprobed indicates that the directory hasn't yet been opened.
	StateUnprobed State = iota
	// StateOpen indicates that the directory is open and a read is
	// outstanding.
	StateOpen
	// StateRetryWait indicates that an attempt to open the directory failed
	// and that the watcher is waiting to re-probe it.
	StateRetryWait
	// StateInvalid indicates that the directory became permanently unusable.
	StateInvalid
)

// String provides a human-readable representation of a state.
func (s State) String() string {
	switch s {
	case StateUnprobed:
		return "unprobed"
	case StateOpen:
		return "open"
	case StateRetryWait:
		return "retry-wait"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// DirectoryStatus is a snapshot of a directory watcher's state.
type DirectoryStatus struct {
	// Path is the watched directory.
	Path string
	// State is the watcher's state.
	State State
	// Watches is the number of registered file watches.
	Watches int
	// Format is the notification record format currently in use.
	Format Format
	// ReadOutstanding indicates whether or not a read is in flight.
	ReadOutstanding bool
	// RetryScheduled indicates whether or not a probe is pending.
	RetryScheduled bool
}
