package monitoring

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/mutagen-io/filemonitor/pkg/logging"
	"github.com/mutagen-io/filemonitor/pkg/must"
)

const (
	// maximumConsecutiveOverflows is the maximum number of consecutive read
	// issuances that can fail due to queue overflow before the failure is
	// treated as unrecoverable.
	maximumConsecutiveOverflows = 16
)

// watchEntry is a single registered file watch.
type watchEntry struct {
	// key is the watch's key.
	key uint64
	// name is the watched leaf name.
	name string
	// callback is the watch's callback.
	callback Callback
}

// directoryWatcher multiplexes file watches onto a single subscription to their
// parent directory.
type directoryWatcher struct {
	// path is the watched directory.
	path string
	// logger is the watcher's logger.
	logger *logging.Logger
	// subscriber is used to open the directory.
	subscriber subscriber
	// minimumRetryDelay is the minimum delay before re-probing the directory.
	minimumRetryDelay time.Duration
	// defaultRetryDelay is the retry delay used for watches that don't
	// suggest one.
	defaultRetryDelay time.Duration
	// bufferSize is the size of the notification buffer.
	bufferSize int
	// errorHandler receives unexpected failures.
	errorHandler func(directory string, err error)
	// collect is invoked without the watcher lock held whenever the watcher
	// becomes empty or invalid. It may be nil.
	collect func(*directoryWatcher)
	// timer is the probe timer.
	timer Timer

	// lock serializes access to the fields below.
	lock sync.Mutex
	// state is the watcher's state.
	state State
	// retired indicates whether or not the watcher has been removed from its
	// monitor.
	retired bool
	// watches are the registered watches in registration order.
	watches []watchEntry
	// subscription is the open subscription, if any.
	subscription subscription
	// format is the current notification record format.
	format Format
	// buffer is the notification buffer. It is allocated on first open.
	buffer []byte
	// reading indicates whether or not a read is outstanding.
	reading bool
	// probePending indicates whether or not the probe timer is armed.
	probePending bool
	// overflows is the number of consecutive read issuances that failed due
	// to queue overflow.
	overflows int
}

// watcherConfiguration carries the monitor-level settings used to construct a
// directory watcher.
type watcherConfiguration struct {
	// subscriber is used to open directories.
	subscriber subscriber
	// scheduler creates probe timers.
	scheduler Scheduler
	// minimumRetryDelay is the minimum delay before re-probing a directory.
	minimumRetryDelay time.Duration
	// defaultRetryDelay is the retry delay used for watches that don't
	// suggest one.
	defaultRetryDelay time.Duration
	// bufferSize is the notification buffer size.
	bufferSize int
	// errorHandler receives unexpected failures.
	errorHandler func(directory string, err error)
	// collect is the monitor's collection hook.
	collect func(*directoryWatcher)
}

// newDirectoryWatcher creates a new unprobed directory watcher. It doesn't
// start any Goroutines.
func newDirectoryWatcher(path string, configuration *watcherConfiguration, logger *logging.Logger) *directoryWatcher {
	// Create the watcher.
	w := &directoryWatcher{
		path:              path,
		logger:            logger,
		subscriber:        configuration.subscriber,
		minimumRetryDelay: configuration.minimumRetryDelay,
		defaultRetryDelay: configuration.defaultRetryDelay,
		bufferSize:        configuration.bufferSize,
		errorHandler:      configuration.errorHandler,
		collect:           configuration.collect,
	}

	// Create the probe timer.
	w.timer = configuration.scheduler.NewTimer("probe "+path, w.probe)

	// Done.
	return w
}

// releaseLock releases the watcher lock and requests collection if the watcher
// has become empty or invalid.
func (w *directoryWatcher) releaseLock() {
	collectable := !w.retired && (w.state == StateInvalid || len(w.watches) == 0)
	w.lock.Unlock()
	if collectable && w.collect != nil {
		w.collect(w)
	}
}

// addFileWatch registers a watch for the specified leaf name. The callback's
// OnBegin method is invoked before addFileWatch returns. It does not probe the
// directory.
func (w *directoryWatcher) addFileWatch(key uint64, name string, callback Callback) (*Registration, error) {
	// Validate the name.
	if !isLeafName(name) {
		return nil, errors.Wrapf(ErrInvalidLeafName, "invalid watch name %q", name)
	}

	// Lock the watcher and ensure that it can still accept watches.
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.retired || w.state == StateInvalid {
		return nil, errWatcherRetired
	}

	// Record the watch and signal its start.
	w.watches = append(w.watches, watchEntry{key: key, name: name, callback: callback})
	callback.OnBegin()

	// Create the registration.
	return &Registration{
		watcher: w,
		key:     key,
		path:    filepath.Join(w.path, name),
	}, nil
}

// ensureWatching arms the probe timer to fire immediately if the directory
// isn't open and no probe is already pending.
func (w *directoryWatcher) ensureWatching() {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.retired || w.state == StateInvalid || w.state == StateOpen || w.probePending {
		return
	}
	w.probePending = true
	w.timer.Set(0)
}

// probe attempts to open and subscribe to the directory. It is invoked by the
// probe timer.
func (w *directoryWatcher) probe() {
	// Lock the watcher and verify that a probe is still warranted.
	w.lock.Lock()
	defer w.releaseLock()
	w.probePending = false
	if w.retired || w.state == StateInvalid || w.state == StateOpen || len(w.watches) == 0 {
		return
	}

	// Open the directory.
	w.logger.Debugf("Probing directory")
	s, err := w.subscriber.Open(w.path)
	if err != nil {
		w.logger.Debugf("Unable to open directory: %v", err)
		w.scheduleRetry(&DirectoryAccessFailure{Directory: w.path, Operation: "open", Err: err})
		return
	}

	// Bind the subscription for completion delivery. Completions from
	// anything other than the current subscription are ignored.
	if err := s.Bind(func(err error, transferred uint32) {
		w.complete(s, err, transferred)
	}); err != nil {
		must.Close(s, w.logger)
		w.logger.Debugf("Unable to bind directory: %v", err)
		w.scheduleRetry(&DirectoryAccessFailure{Directory: w.path, Operation: "bind", Err: err})
		return
	}

	// Allocate the buffer if necessary.
	if w.buffer == nil {
		w.buffer = make([]byte, w.bufferSize)
	}

	// Record the subscription and start reading.
	w.logger.Debugf("Directory opened")
	w.subscription = s
	w.state = StateOpen
	w.overflows = 0
	w.enqueueRead()
}

// scheduleRetry polls every watch for a retry delay after an access failure and
// arms the probe timer accordingly. The watcher lock must be held.
func (w *directoryWatcher) scheduleRetry(failure *DirectoryAccessFailure) {
	// Compute the shortest requested delay.
	var delay time.Duration
	var retry bool
	for _, watch := range w.watches {
		suggested, ok := watch.callback.OnDirectoryAccessFailure(failure)
		if !ok {
			continue
		} else if suggested <= 0 {
			suggested = w.defaultRetryDelay
		}
		if !retry || suggested < delay {
			delay = suggested
		}
		retry = true
	}

	// Update the state.
	w.state = StateRetryWait

	// If nobody wants a retry, then watching stalls until a new watch is
	// registered.
	if !retry {
		w.logger.Warnf("No watches requested a retry, watching suspended")
		return
	}

	// Enforce the minimum delay and arm the timer.
	if delay < w.minimumRetryDelay {
		delay = w.minimumRetryDelay
	}
	w.logger.Debugf("Retrying in %s (%s)", delay, humanize.Time(time.Now().Add(delay)))
	w.probePending = true
	w.timer.Set(delay)
}

// enqueueRead issues the next read. The watcher lock must be held and the
// subscription must be open.
func (w *directoryWatcher) enqueueRead() {
	for {
		// Issue the read.
		err := w.subscription.Read(w.buffer, w.format)
		if err == nil {
			w.reading = true
			return
		}

		// Handle the failure.
		switch {
		case errors.Is(err, errFormatNotSupported) && w.format == FormatExtended:
			w.logger.Infof("Extended notifications unsupported, falling back to legacy format")
			w.format = FormatLegacy
		case errors.Is(err, errQueueOverflow):
			w.overflows++
			if w.overflows > maximumConsecutiveOverflows {
				w.fail(errors.Wrap(err, "persistent notification queue overflow"))
				return
			}
			w.logger.Warnf("Notification queue overflowed")
			w.recheck()
		case errors.Is(err, errAccessDenied):
			w.logger.Debugf("Directory access denied")
			w.invalidate()
			return
		default:
			w.fail(errors.Wrap(err, "unable to read directory changes"))
			return
		}
	}
}

// complete handles a read completion for the specified subscription.
func (w *directoryWatcher) complete(s subscription, err error, transferred uint32) {
	// Lock the watcher and ignore stale completions.
	w.lock.Lock()
	defer w.releaseLock()
	if w.retired || w.subscription == nil || w.subscription != s {
		return
	}
	w.reading = false

	// Handle failed reads.
	if err != nil {
		if errors.Is(err, errAccessDenied) {
			w.logger.Debugf("Directory access denied")
			w.invalidate()
		} else {
			w.fail(errors.Wrap(err, "directory read failed"))
		}
		return
	}

	// Dispatch notifications. An empty completion means that the system
	// discarded records.
	if transferred == 0 {
		w.logger.Warnf("Notification records discarded")
		w.recheck()
	} else {
		w.overflows = 0
		if int(transferred) > len(w.buffer) {
			transferred = uint32(len(w.buffer))
		}
		notifications, err := decodeNotifications(w.format, w.buffer[:transferred])
		w.dispatch(notifications)
		if err != nil {
			w.logger.Warnf("Malformed notification buffer: %v", err)
			w.recheck()
		}
	}

	// Issue the next read.
	w.enqueueRead()
}

// dispatch delivers notifications to matching watches. The watcher lock must be
// held.
func (w *directoryWatcher) dispatch(notifications []notification) {
	for _, n := range notifications {
		w.logger.Tracef("Received %s notification for %s", n.action, n.name)
		for _, watch := range w.watches {
			if !namesEqual(watch.name, n.name) {
				continue
			}
			if n.action.isChange() {
				watch.callback.OnFileChanged(w.path, watch.name)
			} else if n.action.isDeletion() {
				watch.callback.OnFileDeleted(w.path, watch.name)
			}
		}
	}
}

// recheck notifies every watch that changes may have been missed. The watcher
// lock must be held.
func (w *directoryWatcher) recheck() {
	for _, watch := range w.watches {
		watch.callback.OnFileRecheckRequired(w.path, watch.name)
	}
}

// removeWatch cancels the watch with the specified key.
func (w *directoryWatcher) removeWatch(key uint64) error {
	// Lock the watcher. Watches on an invalid watcher have already been
	// terminated.
	w.lock.Lock()
	defer w.releaseLock()
	if w.state == StateInvalid {
		return nil
	}

	// Find and remove the watch.
	for i, watch := range w.watches {
		if watch.key == key {
			watch.callback.OnCancelled()
			w.watches = append(w.watches[:i], w.watches[i+1:]...)
			return nil
		}
	}

	// The key is unknown.
	return errors.Wrapf(ErrWatchNotFound, "no watch with key %d in %s", key, w.path)
}

// closeSubscription closes any open subscription. The watcher lock must be
// held.
func (w *directoryWatcher) closeSubscription() {
	if w.subscription != nil {
		must.Close(w.subscription, w.logger)
		w.subscription = nil
	}
	w.reading = false
}

// fail reports an unexpected failure and invalidates the watcher. The watcher
// lock must be held.
func (w *directoryWatcher) fail(err error) {
	if w.errorHandler != nil {
		w.errorHandler(w.path, err)
	}
	w.invalidate()
}

// invalidate makes the watcher permanently unusable and terminates every
// watch. The watcher lock must be held.
func (w *directoryWatcher) invalidate() {
	// Check for previous invalidation.
	if w.state == StateInvalid {
		return
	}

	// Release resources.
	w.state = StateInvalid
	w.closeSubscription()
	w.timer.Stop()
	w.probePending = false

	// Terminate watches.
	w.logger.Infof("Directory watching invalidated")
	for _, watch := range w.watches {
		watch.callback.OnInvalid()
	}
	w.watches = nil
}

// retire marks the watcher as removed from its monitor and releases its
// resources. The watcher lock must be held.
func (w *directoryWatcher) retire() {
	w.retired = true
	w.closeSubscription()
	w.timer.Stop()
	w.probePending = false
}

// status returns a snapshot of the watcher's state.
func (w *directoryWatcher) status() DirectoryStatus {
	w.lock.Lock()
	defer w.lock.Unlock()
	return DirectoryStatus{
		Path:            w.path,
		State:           w.state,
		Watches:         len(w.watches),
		Format:          w.format,
		ReadOutstanding: w.reading,
		RetryScheduled:  w.probePending,
	}
}
