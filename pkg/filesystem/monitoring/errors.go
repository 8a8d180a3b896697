package monitoring

import (
	"github.com/pkg/errors"
)

var (
	// ErrPathNotAbsolute indicates that a watch was requested for a relative
	// path.
	ErrPathNotAbsolute = errors.New("path is not absolute")
	// ErrInvalidLeafName indicates that a watch name was empty, was a relative
	// directory reference, contained a parent component, or wasn't valid UTF-8.
	ErrInvalidLeafName = errors.New("invalid leaf name")
	// ErrNilCallback indicates that a watch was requested without a callback.
	ErrNilCallback = errors.New("nil callback")
	// ErrWatchNotFound indicates that a registration referred to a watch that
	// its directory watcher doesn't know about.
	ErrWatchNotFound = errors.New("watch not found")

	// errWatcherRetired indicates that a directory watcher has been removed
	// from its monitor and can't accept new watches.
	errWatcherRetired = errors.New("directory watcher retired")
)
