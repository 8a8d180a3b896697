package monitoring

import (
	"github.com/pkg/errors"
)

var (
	// errFormatNotSupported indicates that the filesystem doesn't support the
	// requested notification record format.
	errFormatNotSupported = errors.New("notification format not supported")
	// errQueueOverflow indicates that the native notification queue overflowed
	// and records were discarded.
	errQueueOverflow = errors.New("notification queue overflowed")
	// errAccessDenied indicates that the watched directory is no longer
	// accessible, typically because it was deleted while open.
	errAccessDenied = errors.New("directory access denied")
)

// completionHandler receives the result of an asynchronous directory read. A
// nil error with zero bytes transferred indicates that the native queue
// overflowed and no records were delivered.
type completionHandler func(err error, transferred uint32)

// subscription pairs an open directory handle with its asynchronous completion
// binding.
type subscription interface {
	// Bind associates the subscription with asynchronous completion delivery.
	// Completions are delivered to handler on a backend goroutine.
	Bind(handler completionHandler) error
	// Read issues a single asynchronous read of directory changes into buffer
	// using the specified record format. It never completes synchronously, and
	// the buffer must not be touched until the completion is delivered. Only
	// one read may be outstanding at a time.
	Read(buffer []byte, format Format) error
	// Close closes the subscription. It does not wait for any completion that
	// is already being delivered.
	Close() error
}

// subscriber opens subscriptions to directories.
type subscriber interface {
	// Open opens the specified directory for change notification.
	Open(directory string) (subscription, error)
}
