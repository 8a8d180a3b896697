package monitoring

import (
	"fmt"
	"time"
)

// DirectoryAccessFailure describes a failure to open or subscribe to a watched
// file's parent directory.
type DirectoryAccessFailure struct {
	// Directory is the directory that couldn't be accessed.
	Directory string
	// Operation is the operation that failed, either "open" or "bind".
	Operation string
	// Err is the underlying error.
	Err error
}

// Error implements error.Error.
func (f *DirectoryAccessFailure) Error() string {
	return fmt.Sprintf("unable to %s directory %s: %v", f.Operation, f.Directory, f.Err)
}

// Unwrap returns the underlying error.
func (f *DirectoryAccessFailure) Unwrap() error {
	return f.Err
}

// FileAccessFailure describes a failure to access a watched file itself.
type FileAccessFailure struct {
	// Directory is the watched file's parent directory.
	Directory string
	// Name is the watched file's name.
	Name string
	// Err is the underlying error.
	Err error
}

// Error implements error.Error.
func (f *FileAccessFailure) Error() string {
	return fmt.Sprintf("unable to access %s in %s: %v", f.Name, f.Directory, f.Err)
}

// Unwrap returns the underlying error.
func (f *FileAccessFailure) Unwrap() error {
	return f.Err
}

// Callback is the interface implemented by clients to receive events for a
// single watched file. For any one watch, OnBegin is always invoked first and
// exactly one of OnCancelled or OnInvalid is invoked last. No methods are
// invoked after the terminal event.
//
// Callbacks are invoked while internal locks are held. Implementations must
// not block, perform expensive work inline, or call back into the Monitor or
// the watch's Registration.
type Callback interface {
	// OnBegin is invoked synchronously when the watch is registered.
	OnBegin()
	// OnDirectoryAccessFailure is invoked when the watched file's parent
	// directory can't be opened or subscribed to. It returns a suggested retry
	// delay and whether or not a retry should occur at all. A non-positive
	// delay requests the monitor's default retry delay. The monitor retries
	// after the shortest delay suggested by any of the directory's watches,
	// but never sooner than its minimum retry delay.
	OnDirectoryAccessFailure(failure *DirectoryAccessFailure) (time.Duration, bool)
	// OnFileAccessFailure is reserved for file-level access failures and uses
	// the same retry protocol as OnDirectoryAccessFailure. It is not currently
	// invoked by the monitor.
	OnFileAccessFailure(failure *FileAccessFailure) (time.Duration, bool)
	// OnFileChanged is invoked when the watched file is created, modified, or
	// renamed into place.
	OnFileChanged(directory, name string)
	// OnFileDeleted is invoked when the watched file is removed or renamed
	// away.
	OnFileDeleted(directory, name string)
	// OnFileRecheckRequired is invoked when changes may have been missed (for
	// example due to a notification queue overflow) and the client should
	// inspect the file itself.
	OnFileRecheckRequired(directory, name string)
	// OnCancelled is invoked when the watch's registration is closed.
	OnCancelled()
	// OnInvalid is invoked when the watched file's parent directory becomes
	// permanently unusable, such as when it's deleted while being watched.
	OnInvalid()
}

// NopCallback is a Callback that ignores all events and always requests a
// retry after the default delay. It's intended for embedding in client types
// that only handle a subset of events.
type NopCallback struct{}

// OnBegin implements Callback.OnBegin.
func (NopCallback) OnBegin() {}

// OnDirectoryAccessFailure implements Callback.OnDirectoryAccessFailure.
func (NopCallback) OnDirectoryAccessFailure(_ *DirectoryAccessFailure) (time.Duration, bool) {
	return 0, true
}

// OnFileAccessFailure implements Callback.OnFileAccessFailure.
func (NopCallback) OnFileAccessFailure(_ *FileAccessFailure) (time.Duration, bool) {
	return 0, true
}

// OnFileChanged implements Callback.OnFileChanged.
func (NopCallback) OnFileChanged(_, _ string) {}

// OnFileDeleted implements Callback.OnFileDeleted.
func (NopCallback) OnFileDeleted(_, _ string) {}

// OnFileRecheckRequired implements Callback.OnFileRecheckRequired.
func (NopCallback) OnFileRecheckRequired(_, _ string) {}

// OnCancelled implements Callback.OnCancelled.
func (NopCallback) OnCancelled() {}

// OnInvalid implements Callback.OnInvalid.
func (NopCallback) OnInvalid() {}
