package monitoring

import (
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/mutagen-io/filemonitor/pkg/logging"
)

const (
	// DefaultMinimumRetryDelay is the default minimum delay between directory
	// probes.
	DefaultMinimumRetryDelay = 50 * time.Millisecond
	// DefaultDefaultRetryDelay is the default retry delay used for watches
	// that don't suggest one.
	DefaultDefaultRetryDelay = 500 * time.Millisecond
	// DefaultBufferSize is the default notification buffer size.
	DefaultBufferSize = 32 * 1024
	// MinimumBufferSize is the smallest notification buffer size allowed.
	MinimumBufferSize = 1024
)

// Configuration encodes Monitor settings. Zero values select defaults.
type Configuration struct {
	// MinimumRetryDelay is the minimum delay before re-probing a directory
	// that couldn't be accessed, regardless of what watches request.
	MinimumRetryDelay time.Duration
	// DefaultRetryDelay is the retry delay used when a watch requests a retry
	// without suggesting a delay.
	DefaultRetryDelay time.Duration
	// BufferSize is the size of each directory's notification buffer. Sizes
	// below MinimumBufferSize are raised to MinimumBufferSize.
	BufferSize int
	// ErrorHandler receives unexpected failures that invalidate a directory
	// watcher. It is invoked while internal locks are held and is subject to
	// the same restrictions as Callback methods. If nil, failures are logged.
	ErrorHandler func(directory string, err error)
	// Scheduler is the timer facility used for directory probes. If nil,
	// timers are backed by time.AfterFunc.
	Scheduler Scheduler
}

// Monitor is a registry of directory watchers. At most one watcher exists for
// each directory at any time, and watchers are discarded once they have no
// watches left. It is safe for concurrent usage.
type Monitor struct {
	// logger is the monitor's logger.
	logger *logging.Logger
	// watcherConfiguration is the configuration used to create watchers.
	watcherConfiguration watcherConfiguration
	// nextKey is the last assigned watch key.
	nextKey atomic.Uint64

	// lock serializes access to watchers. When both are held, it is always
	// acquired before any watcher lock.
	lock sync.Mutex
	// watchers maps directory paths to their watchers.
	watchers map[string]*directoryWatcher
}

// NewMonitor creates a new monitor using the native change notification
// facility. The configuration may be nil. Creating a monitor doesn't start any
// Goroutines.
func NewMonitor(configuration *Configuration, logger *logging.Logger) *Monitor {
	return newMonitor(configuration, &nativeSubscriber{logger: logger}, logger)
}

// newMonitor creates a new monitor with the specified subscriber.
func newMonitor(configuration *Configuration, subscriber subscriber, logger *logging.Logger) *Monitor {
	// Resolve settings.
	if configuration == nil {
		configuration = &Configuration{}
	}
	minimumRetryDelay := configuration.MinimumRetryDelay
	if minimumRetryDelay <= 0 {
		minimumRetryDelay = DefaultMinimumRetryDelay
	}
	defaultRetryDelay := configuration.DefaultRetryDelay
	if defaultRetryDelay <= 0 {
		defaultRetryDelay = DefaultDefaultRetryDelay
	}
	bufferSize := configuration.BufferSize
	if bufferSize == 0 {
		bufferSize = DefaultBufferSize
	} else if bufferSize < MinimumBufferSize {
		bufferSize = MinimumBufferSize
	}
	errorHandler := configuration.ErrorHandler
	if errorHandler == nil {
		errorHandler = func(directory string, err error) {
			logger.Errorf("Unable to continue watching %s: %v", directory, err)
		}
	}
	scheduler := configuration.Scheduler
	if scheduler == nil {
		scheduler = &goroutineScheduler{logger: logger.Sublogger("scheduler")}
	}

	// Create the monitor.
	m := &Monitor{
		logger:   logger,
		watchers: make(map[string]*directoryWatcher),
	}
	m.watcherConfiguration = watcherConfiguration{
		subscriber:        subscriber,
		scheduler:         scheduler,
		minimumRetryDelay: minimumRetryDelay,
		defaultRetryDelay: defaultRetryDelay,
		bufferSize:        bufferSize,
		errorHandler:      errorHandler,
		collect:           m.collect,
	}

	// Done.
	return m
}

// RegisterWatch registers a watch for the file at the specified absolute path.
// Neither the file nor its parent directory need exist. The callback's OnBegin
// method is invoked before RegisterWatch returns. Closing the resulting
// registration cancels the watch.
func (m *Monitor) RegisterWatch(path string, callback Callback) (*Registration, error) {
	// Validate parameters.
	if callback == nil {
		return nil, ErrNilCallback
	} else if !filepath.IsAbs(path) {
		return nil, errors.Wrapf(ErrPathNotAbsolute, "unable to watch %q", path)
	}

	// Split the path into its parent directory and leaf name.
	path = filepath.Clean(path)
	parent, leaf := filepath.Dir(path), filepath.Base(path)
	if parent == path || !isLeafName(leaf) {
		return nil, errors.Wrapf(ErrInvalidLeafName, "unable to watch %q", path)
	}

	// Assign a key.
	key := m.nextKey.Add(1)

	// Register the watch. If the watcher is retired between lookup and
	// registration, then retry with its replacement.
	for {
		watcher := m.watcher(parent)
		registration, err := watcher.addFileWatch(key, leaf, callback)
		if errors.Is(err, errWatcherRetired) {
			continue
		} else if err != nil {
			return nil, err
		}
		watcher.ensureWatching()
		return registration, nil
	}
}

// watcher returns the live watcher for a directory, creating it if necessary.
func (m *Monitor) watcher(path string) *directoryWatcher {
	// Lock the registry.
	m.lock.Lock()
	defer m.lock.Unlock()

	// Look for an existing watcher. An invalid watcher that hasn't yet been
	// collected is retired and replaced.
	if watcher, ok := m.watchers[path]; ok {
		watcher.lock.Lock()
		invalid := watcher.state == StateInvalid
		if invalid {
			watcher.retire()
		}
		watcher.lock.Unlock()
		if !invalid {
			return watcher
		}
	}

	// Create a new watcher.
	watcher := newDirectoryWatcher(path, &m.watcherConfiguration, m.logger.Sublogger(path))
	m.watchers[path] = watcher
	return watcher
}

// collect retires and removes a watcher that is empty or invalid.
func (m *Monitor) collect(watcher *directoryWatcher) {
	// Lock the registry and the watcher, in that order.
	m.lock.Lock()
	defer m.lock.Unlock()
	watcher.lock.Lock()
	defer watcher.lock.Unlock()

	// Verify that the watcher is still collectable.
	if watcher.retired || (watcher.state != StateInvalid && len(watcher.watches) > 0) {
		return
	}

	// Retire the watcher and remove it from the registry.
	watcher.retire()
	if m.watchers[watcher.path] == watcher {
		delete(m.watchers, watcher.path)
	}
	m.logger.Debugf("Discarded watcher for %s", watcher.path)
}

// Status returns a snapshot of every directory watcher, sorted by path.
func (m *Monitor) Status() []DirectoryStatus {
	// Grab the current watchers.
	m.lock.Lock()
	watchers := make([]*directoryWatcher, 0, len(m.watchers))
	for _, watcher := range m.watchers {
		watchers = append(watchers, watcher)
	}
	m.lock.Unlock()

	// Query their status.
	result := make([]DirectoryStatus, 0, len(watchers))
	for _, watcher := range watchers {
		result = append(result, watcher.status())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})

	// Done.
	return result
}
