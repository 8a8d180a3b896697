package main

import (
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"

	"github.com/mutagen-io/filemonitor/pkg/filesystem/monitoring"
)

func TestForwardingCallbackDropsWhenFull(t *testing.T) {
	// Create a callback with a single-slot channel.
	events := make(chan watchEvent, 1)
	var dropped atomic.Uint64
	callback := &forwardingCallback{path: "/file", events: events, dropped: &dropped}

	// Forward more events than fit.
	callback.OnFileChanged("/", "file")
	callback.OnFileDeleted("/", "file")
	callback.OnFileRecheckRequired("/", "file")

	// Verify what was delivered and dropped.
	if event := <-events; event.kind != eventChanged || event.path != "/file" {
		t.Error("unexpected event:", event)
	}
	if count := dropped.Load(); count != 2 {
		t.Error("unexpected dropped count:", count)
	}
}

func TestForwardingCallbackCoalescesFailures(t *testing.T) {
	// Create a callback.
	events := make(chan watchEvent, 10)
	var dropped atomic.Uint64
	callback := &forwardingCallback{path: "/missing/file", events: events, dropped: &dropped}

	// Report the same failure repeatedly, then a different one.
	failure := &monitoring.DirectoryAccessFailure{Directory: "/missing", Operation: "open", Err: errors.New("not found")}
	for i := 0; i < 3; i++ {
		if delay, retry := callback.OnDirectoryAccessFailure(failure); delay != 0 || !retry {
			t.Error("unexpected retry request:", delay, retry)
		}
	}
	callback.OnDirectoryAccessFailure(&monitoring.DirectoryAccessFailure{
		Directory: "/missing", Operation: "bind", Err: errors.New("unsupported"),
	})

	// Verify that only distinct failures were forwarded.
	if count := len(events); count != 2 {
		t.Error("unexpected forwarded failure count:", count)
	}
}
