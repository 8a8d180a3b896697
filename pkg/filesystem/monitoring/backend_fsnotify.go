//go:build unix

package monitoring

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/mutagen-io/filemonitor/pkg/logging"
	"github.com/mutagen-io/filemonitor/pkg/must"
)

const (
	// fsnotifyMaximumPendingNotifications is the maximum number of
	// notifications that will be queued between reads before the queue is
	// treated as overflowed.
	fsnotifyMaximumPendingNotifications = 4096
)

// nativeSubscriber implements subscriber using fsnotify.
type nativeSubscriber struct {
	// logger is the subscriber's logger.
	logger *logging.Logger
}

// Open implements subscriber.Open.
func (s *nativeSubscriber) Open(directory string) (subscription, error) {
	// Open the directory to verify that it exists and is accessible.
	file, err := os.Open(directory)
	if err != nil {
		return nil, err
	}
	defer must.Close(file, s.logger)

	// Ensure that it's a directory.
	if metadata, err := file.Stat(); err != nil {
		return nil, errors.Wrap(err, "unable to query directory metadata")
	} else if !metadata.IsDir() {
		return nil, &os.PathError{Op: "open", Path: directory, Err: unix.ENOTDIR}
	}

	// Create the subscription.
	return &fsnotifySubscription{
		directory: directory,
		logger:    s.logger,
	}, nil
}

// fsnotifySubscription implements subscription using fsnotify. Events are
// queued by a run loop and presented to reads in the native record layouts.
type fsnotifySubscription struct {
	// directory is the watched directory.
	directory string
	// logger is the subscription's logger.
	logger *logging.Logger
	// watcher is the underlying watcher. It is set by Bind.
	watcher *fsnotify.Watcher
	// wake signals the run loop that a read has been issued.
	wake chan struct{}
	// done is closed when the subscription is closed.
	done chan struct{}

	// lock serializes access to the fields below.
	lock sync.Mutex
	// handler is the completion handler.
	handler completionHandler
	// closed indicates whether or not the subscription has been closed.
	closed bool
	// reading indicates whether or not a read is outstanding.
	reading bool
	// buffer is the outstanding read's buffer.
	buffer []byte
	// format is the outstanding read's record format.
	format Format
	// pending is the queue of notifications not yet delivered.
	pending []notification
	// overflowed indicates that notifications were discarded.
	overflowed bool
	// failure is a terminal failure to deliver.
	failure error
}

// Bind implements subscription.Bind.
func (s *fsnotifySubscription) Bind(handler completionHandler) error {
	// Create the watcher and start watching the directory.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "unable to create watcher")
	} else if err = watcher.Add(s.directory); err != nil {
		must.Close(watcher, s.logger)
		return errors.Wrap(err, "unable to start watching")
	}

	// Record binding state.
	s.watcher = watcher
	s.handler = handler
	s.wake = make(chan struct{}, 1)
	s.done = make(chan struct{})

	// Start the run loop.
	go s.run(watcher.Events, watcher.Errors)

	// Success.
	return nil
}

// run is the event queueing and completion delivery loop.
func (s *fsnotifySubscription) run(events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-events:
			if !ok {
				events = nil
				s.recordError(errors.New("event channel closed unexpectedly"))
			} else {
				s.recordEvent(event)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				s.recordError(errors.New("error channel closed unexpectedly"))
			} else {
				s.recordError(err)
			}
		case <-s.wake:
		}
		s.deliver()
	}
}

// queue appends notifications to the pending queue, treating the queue as
// overflowed if it grows too large. The caller must hold the lock.
func (s *fsnotifySubscription) queue(action Action, name string) {
	if s.overflowed {
		return
	} else if len(s.pending) >= fsnotifyMaximumPendingNotifications {
		s.overflowed = true
		s.pending = s.pending[:0]
		return
	}
	s.pending = append(s.pending, notification{action: action, name: name})
}

// recordEvent converts an fsnotify event into queued notifications.
func (s *fsnotifySubscription) recordEvent(event fsnotify.Event) {
	s.lock.Lock()
	defer s.lock.Unlock()

	// Removal or renaming of the directory itself ends the subscription.
	if event.Name == s.directory {
		if event.Has(fsnotify.Remove|fsnotify.Rename) && s.failure == nil {
			s.failure = errAccessDenied
		}
		return
	}

	// Ignore anything that isn't a direct child.
	if filepath.Dir(event.Name) != s.directory {
		return
	}
	name := filepath.Base(event.Name)

	// Queue notifications for each operation in the event.
	if event.Has(fsnotify.Create) {
		s.queue(ActionAdded, name)
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
		s.queue(ActionModified, name)
	}
	if event.Has(fsnotify.Remove) {
		s.queue(ActionRemoved, name)
	}
	if event.Has(fsnotify.Rename) {
		s.queue(ActionRenamedOldName, name)
	}
}

// recordError records a watcher error.
func (s *fsnotifySubscription) recordError(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		s.overflowed = true
		s.pending = s.pending[:0]
	} else if s.failure == nil {
		s.failure = err
	}
}

// deliver completes the outstanding read, if any, with whatever is available.
func (s *fsnotifySubscription) deliver() {
	// Compute the completion while holding the lock.
	s.lock.Lock()
	if !s.reading || s.closed {
		s.lock.Unlock()
		return
	}
	var err error
	var transferred uint32
	switch {
	case s.failure != nil:
		err = s.failure
	case s.overflowed:
		s.overflowed = false
	case len(s.pending) > 0:
		written, consumed, encodeErr := encodeNotifications(s.format, s.buffer, s.pending)
		if encodeErr != nil {
			err = encodeErr
		} else if consumed == 0 {
			// The first record doesn't fit in the buffer at all, so drop it
			// and report an overflow.
			s.pending = append(s.pending[:0], s.pending[1:]...)
		} else {
			s.pending = append(s.pending[:0], s.pending[consumed:]...)
			transferred = uint32(written)
		}
	default:
		s.lock.Unlock()
		return
	}
	s.reading = false
	s.buffer = nil
	handler := s.handler
	s.lock.Unlock()

	// Deliver the completion without holding the lock, since the handler will
	// typically issue the next read.
	handler(err, transferred)
}

// Read implements subscription.Read.
func (s *fsnotifySubscription) Read(buffer []byte, format Format) error {
	// Record the read.
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return errors.New("subscription closed")
	} else if s.handler == nil {
		s.lock.Unlock()
		return errors.New("subscription not bound")
	} else if s.reading {
		s.lock.Unlock()
		return errors.New("read already outstanding")
	}
	s.reading = true
	s.buffer = buffer
	s.format = format
	s.lock.Unlock()

	// Poke the run loop in case notifications are already queued.
	select {
	case s.wake <- struct{}{}:
	default:
	}

	// Success.
	return nil
}

// Close implements subscription.Close.
func (s *fsnotifySubscription) Close() error {
	// Mark the subscription as closed.
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return nil
	}
	s.closed = true
	s.lock.Unlock()

	// If the subscription was never bound, then there's nothing to release.
	if s.watcher == nil {
		return nil
	}

	// Terminate the run loop and the watcher.
	close(s.done)
	return s.watcher.Close()
}
