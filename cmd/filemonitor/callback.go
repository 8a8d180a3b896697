package main

import (
	"sync/atomic"
	"time"

	"github.com/mutagen-io/filemonitor/pkg/filesystem/monitoring"
)

// eventKind identifies a watch event printed by the watch command.
type eventKind uint8

const (
	// eventChanged indicates that a file changed.
	eventChanged eventKind = iota
	// eventDeleted indicates that a file was deleted.
	eventDeleted
	// eventRecheck indicates that a file needs to be rechecked.
	eventRecheck
	// eventAccessFailure indicates that a file's directory is inaccessible.
	eventAccessFailure
	// eventInvalid indicates that a watch was terminated.
	eventInvalid
)

// String provides a human-readable representation of an event kind.
func (k eventKind) String() string {
	switch k {
	case eventChanged:
		return "changed"
	case eventDeleted:
		return "deleted"
	case eventRecheck:
		return "recheck"
	case eventAccessFailure:
		return "access failure"
	case eventInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// watchEvent is an event forwarded from a callback to the watch command.
type watchEvent struct {
	// kind is the event kind.
	kind eventKind
	// path is the watched path.
	path string
	// detail is any additional information.
	detail string
}

// forwardingCallback is a monitoring.Callback that forwards events over a
// channel without blocking.
type forwardingCallback struct {
	// path is the watched path.
	path string
	// retryDelay is the retry delay requested after access failures.
	retryDelay time.Duration
	// events is the event channel.
	events chan<- watchEvent
	// dropped counts events discarded because the channel was full.
	dropped *atomic.Uint64
	// lastFailure is the most recently forwarded access failure message. It is
	// only accessed from callbacks, which are serialized.
	lastFailure string
}

// forward sends an event if the channel has room.
func (c *forwardingCallback) forward(kind eventKind, detail string) {
	select {
	case c.events <- watchEvent{kind: kind, path: c.path, detail: detail}:
	default:
		c.dropped.Add(1)
	}
}

// OnBegin implements monitoring.Callback.OnBegin.
func (c *forwardingCallback) OnBegin() {}

// OnDirectoryAccessFailure implements
// monitoring.Callback.OnDirectoryAccessFailure. Repeated identical failures are
// only forwarded once.
func (c *forwardingCallback) OnDirectoryAccessFailure(failure *monitoring.DirectoryAccessFailure) (time.Duration, bool) {
	if message := failure.Error(); message != c.lastFailure {
		c.lastFailure = message
		c.forward(eventAccessFailure, message)
	}
	return c.retryDelay, true
}

// OnFileAccessFailure implements monitoring.Callback.OnFileAccessFailure.
func (c *forwardingCallback) OnFileAccessFailure(failure *monitoring.FileAccessFailure) (time.Duration, bool) {
	c.forward(eventAccessFailure, failure.Error())
	return c.retryDelay, true
}

// OnFileChanged implements monitoring.Callback.OnFileChanged.
func (c *forwardingCallback) OnFileChanged(_, _ string) {
	c.lastFailure = ""
	c.forward(eventChanged, "")
}

// OnFileDeleted implements monitoring.Callback.OnFileDeleted.
func (c *forwardingCallback) OnFileDeleted(_, _ string) {
	c.lastFailure = ""
	c.forward(eventDeleted, "")
}

// OnFileRecheckRequired implements monitoring.Callback.OnFileRecheckRequired.
func (c *forwardingCallback) OnFileRecheckRequired(_, _ string) {
	c.forward(eventRecheck, "")
}

// OnCancelled implements monitoring.Callback.OnCancelled.
func (c *forwardingCallback) OnCancelled() {}

// OnInvalid implements monitoring.Callback.OnInvalid.
func (c *forwardingCallback) OnInvalid() {
	c.forward(eventInvalid, "parent directory is no longer usable")
}
