package monitoring

import (
	"sync"
)

// Registration represents a single file watch. Closing it cancels the watch.
type Registration struct {
	// watcher is the directory watcher that owns the watch.
	watcher *directoryWatcher
	// key is the watch's key within the watcher.
	key uint64
	// path is the watched path.
	path string
	// once ensures that the watch is removed at most once.
	once sync.Once
}

// Path returns the watched file path.
func (r *Registration) Path() string {
	return r.path
}

// Close cancels the watch. The watch's callback receives OnCancelled before
// Close returns, unless the watch was already terminated with OnInvalid.
// Subsequent calls are no-ops. Close must not be called from within a
// callback.
func (r *Registration) Close() error {
	var err error
	r.once.Do(func() {
		err = r.watcher.removeWatch(r.key)
	})
	return err
}
