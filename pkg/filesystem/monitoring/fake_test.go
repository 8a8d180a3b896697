package monitoring

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// fakeTimer is a Timer that only fires when instructed.
type fakeTimer struct {
	// callback is the timer callback.
	callback func()
	// lock serializes access to the fields below.
	lock sync.Mutex
	// armed indicates whether or not the timer is armed.
	armed bool
	// durations records every armed duration.
	durations []time.Duration
}

// Set implements Timer.Set.
func (t *fakeTimer) Set(duration time.Duration) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.armed = true
	t.durations = append(t.durations, duration)
}

// Stop implements Timer.Stop.
func (t *fakeTimer) Stop() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.armed = false
}

// isArmed returns whether or not the timer is armed.
func (t *fakeTimer) isArmed() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.armed
}

// lastDuration returns the most recently armed duration.
func (t *fakeTimer) lastDuration() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.durations) == 0 {
		return -1
	}
	return t.durations[len(t.durations)-1]
}

// fire invokes the callback if the timer is armed and reports whether or not it
// did.
func (t *fakeTimer) fire() bool {
	t.lock.Lock()
	armed := t.armed
	t.armed = false
	t.lock.Unlock()
	if armed {
		t.callback()
	}
	return armed
}

// fakeScheduler is a Scheduler that creates fakeTimers.
type fakeScheduler struct {
	// lock serializes access to timers.
	lock sync.Mutex
	// timers maps labels to the most recent timer created with that label.
	timers map[string]*fakeTimer
}

// newFakeScheduler creates a new fake scheduler.
func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{timers: make(map[string]*fakeTimer)}
}

// NewTimer implements Scheduler.NewTimer.
func (s *fakeScheduler) NewTimer(label string, callback func()) Timer {
	s.lock.Lock()
	defer s.lock.Unlock()
	timer := &fakeTimer{callback: callback}
	s.timers[label] = timer
	return timer
}

// timer returns the probe timer for the specified directory.
func (s *fakeScheduler) timer(t *testing.T, directory string) *fakeTimer {
	t.Helper()
	s.lock.Lock()
	defer s.lock.Unlock()
	timer, ok := s.timers["probe "+directory]
	if !ok {
		t.Fatal("no probe timer for", directory)
	}
	return timer
}

// fakeSubscriber is a subscriber with scripted failures.
type fakeSubscriber struct {
	// lock serializes access to the fields below.
	lock sync.Mutex
	// openErrors are returned by successive opens. Opens succeed once the
	// queue is exhausted, and nil entries also indicate success.
	openErrors []error
	// bindErrors are returned by successive binds in the same manner.
	bindErrors []error
	// readErrors are assigned to each subscription when it is opened.
	readErrors []error
	// opened records every opened subscription.
	opened []*fakeSubscription
}

// popError removes and returns the first error in a queue.
func popError(queue *[]error) error {
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	*queue = (*queue)[1:]
	return err
}

// Open implements subscriber.Open.
func (s *fakeSubscriber) Open(directory string) (subscription, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := popError(&s.openErrors); err != nil {
		return nil, err
	}
	result := &fakeSubscription{
		directory:  directory,
		bindError:  popError(&s.bindErrors),
		readErrors: s.readErrors,
	}
	s.readErrors = nil
	s.opened = append(s.opened, result)
	return result, nil
}

// opens returns the number of successful opens.
func (s *fakeSubscriber) opens() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.opened)
}

// latest returns the most recently opened subscription.
func (s *fakeSubscriber) latest(t *testing.T) *fakeSubscription {
	t.Helper()
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.opened) == 0 {
		t.Fatal("no subscriptions opened")
	}
	return s.opened[len(s.opened)-1]
}

// fakeSubscription is a subscription driven manually by tests.
type fakeSubscription struct {
	// directory is the subscribed directory.
	directory string
	// bindError is returned by Bind.
	bindError error

	// lock serializes access to the fields below.
	lock sync.Mutex
	// handler is the completion handler.
	handler completionHandler
	// readErrors are returned by successive reads.
	readErrors []error
	// formats records the format of every read attempt.
	formats []Format
	// buffer is the most recently issued read's buffer.
	buffer []byte
	// format is the most recently issued read's format.
	format Format
	// outstanding is the number of outstanding reads.
	outstanding int
	// maximumOutstanding is the largest value outstanding has reached.
	maximumOutstanding int
	// issued is the number of successfully issued reads.
	issued int
	// closed indicates whether or not the subscription was closed.
	closed bool
}

// Bind implements subscription.Bind.
func (s *fakeSubscription) Bind(handler completionHandler) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.bindError != nil {
		return s.bindError
	}
	s.handler = handler
	return nil
}

// Read implements subscription.Read.
func (s *fakeSubscription) Read(buffer []byte, format Format) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.formats = append(s.formats, format)
	if s.closed {
		return errors.New("subscription closed")
	} else if err := popError(&s.readErrors); err != nil {
		return err
	}
	s.buffer = buffer
	s.format = format
	s.issued++
	s.outstanding++
	if s.outstanding > s.maximumOutstanding {
		s.maximumOutstanding = s.outstanding
	}
	return nil
}

// Close implements subscription.Close.
func (s *fakeSubscription) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closed = true
	return nil
}

// isClosed returns whether or not the subscription was closed.
func (s *fakeSubscription) isClosed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.closed
}

// reads returns the number of successfully issued reads and the maximum number
// that were ever outstanding at once.
func (s *fakeSubscription) reads() (int, int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.issued, s.maximumOutstanding
}

// attempts returns the format of every read attempt.
func (s *fakeSubscription) attempts() []Format {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]Format(nil), s.formats...)
}

// finish completes the outstanding read, invoking the handler built by fill
// without holding the subscription lock.
func (s *fakeSubscription) finish(t *testing.T, fill func(buffer []byte, format Format) (uint32, error)) {
	t.Helper()
	s.lock.Lock()
	if s.outstanding != 1 {
		s.lock.Unlock()
		t.Fatal("expected exactly one outstanding read, found", s.outstanding)
	}
	s.outstanding--
	transferred, err := fill(s.buffer, s.format)
	handler := s.handler
	s.lock.Unlock()
	handler(err, transferred)
}

// deliver completes the outstanding read with the specified notifications.
func (s *fakeSubscription) deliver(t *testing.T, notifications ...notification) {
	t.Helper()
	s.finish(t, func(buffer []byte, format Format) (uint32, error) {
		written, consumed, err := encodeNotifications(format, buffer, notifications)
		if err != nil || consumed != len(notifications) {
			t.Fatal("unable to encode notifications:", err)
		}
		return uint32(written), nil
	})
}

// fail completes the outstanding read with an error.
func (s *fakeSubscription) fail(t *testing.T, err error) {
	t.Helper()
	s.finish(t, func(_ []byte, _ Format) (uint32, error) {
		return 0, err
	})
}

// overflow completes the outstanding read without any records.
func (s *fakeSubscription) overflow(t *testing.T) {
	t.Helper()
	s.finish(t, func(_ []byte, _ Format) (uint32, error) {
		return 0, nil
	})
}

// event is a callback invocation recorded by recordingCallback.
type event struct {
	// kind is the invoked method.
	kind string
	// name is the leaf name passed to the method, if any.
	name string
}

// recordingCallback is a Callback that records its invocations.
type recordingCallback struct {
	// delay is the retry delay returned from failure methods.
	delay time.Duration
	// giveUp causes failure methods to decline retries.
	giveUp bool

	// lock serializes access to the fields below.
	lock sync.Mutex
	// events are the recorded invocations.
	events []event
	// failures are the reported directory access failures.
	failures []*DirectoryAccessFailure
}

// record records an invocation.
func (c *recordingCallback) record(kind, name string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.events = append(c.events, event{kind: kind, name: name})
}

// OnBegin implements Callback.OnBegin.
func (c *recordingCallback) OnBegin() {
	c.record("begin", "")
}

// OnDirectoryAccessFailure implements Callback.OnDirectoryAccessFailure.
func (c *recordingCallback) OnDirectoryAccessFailure(failure *DirectoryAccessFailure) (time.Duration, bool) {
	c.lock.Lock()
	c.failures = append(c.failures, failure)
	c.lock.Unlock()
	c.record("access-failure", "")
	return c.delay, !c.giveUp
}

// OnFileAccessFailure implements Callback.OnFileAccessFailure.
func (c *recordingCallback) OnFileAccessFailure(failure *FileAccessFailure) (time.Duration, bool) {
	c.record("file-access-failure", failure.Name)
	return c.delay, !c.giveUp
}

// OnFileChanged implements Callback.OnFileChanged.
func (c *recordingCallback) OnFileChanged(_, name string) {
	c.record("changed", name)
}

// OnFileDeleted implements Callback.OnFileDeleted.
func (c *recordingCallback) OnFileDeleted(_, name string) {
	c.record("deleted", name)
}

// OnFileRecheckRequired implements Callback.OnFileRecheckRequired.
func (c *recordingCallback) OnFileRecheckRequired(_, name string) {
	c.record("recheck", name)
}

// OnCancelled implements Callback.OnCancelled.
func (c *recordingCallback) OnCancelled() {
	c.record("cancelled", "")
}

// OnInvalid implements Callback.OnInvalid.
func (c *recordingCallback) OnInvalid() {
	c.record("invalid", "")
}

// count returns the number of recorded invocations of the specified kind.
func (c *recordingCallback) count(kind string) int {
	c.lock.Lock()
	defer c.lock.Unlock()
	var result int
	for _, e := range c.events {
		if e.kind == kind {
			result++
		}
	}
	return result
}

// kinds returns the kinds of all recorded invocations in order.
func (c *recordingCallback) kinds() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	result := make([]string, len(c.events))
	for i, e := range c.events {
		result[i] = e.kind
	}
	return result
}

// lastFailure returns the most recent directory access failure.
func (c *recordingCallback) lastFailure() *DirectoryAccessFailure {
	c.lock.Lock()
	defer c.lock.Unlock()
	if len(c.failures) == 0 {
		return nil
	}
	return c.failures[len(c.failures)-1]
}

// testEnvironment bundles a monitor with its test doubles.
type testEnvironment struct {
	// monitor is the monitor under test.
	monitor *Monitor
	// subscriber is the monitor's subscriber.
	subscriber *fakeSubscriber
	// scheduler is the monitor's scheduler.
	scheduler *fakeScheduler
	// directory is an absolute directory path for watches.
	directory string

	// lock serializes access to errors.
	lock sync.Mutex
	// errors are the failures reported to the monitor's error handler.
	errors []error
}

// newTestEnvironment creates a monitor with fake collaborators.
func newTestEnvironment(t *testing.T, subscriber *fakeSubscriber) *testEnvironment {
	t.Helper()
	if subscriber == nil {
		subscriber = &fakeSubscriber{}
	}
	environment := &testEnvironment{
		subscriber: subscriber,
		scheduler:  newFakeScheduler(),
		directory:  t.TempDir(),
	}
	environment.monitor = newMonitor(&Configuration{
		Scheduler: environment.scheduler,
		ErrorHandler: func(_ string, err error) {
			environment.lock.Lock()
			environment.errors = append(environment.errors, err)
			environment.lock.Unlock()
		},
	}, subscriber, nil)
	return environment
}

// register registers a watch on a leaf name in the test directory.
func (e *testEnvironment) register(t *testing.T, name string, callback Callback) *Registration {
	t.Helper()
	registration, err := e.monitor.RegisterWatch(filepath.Join(e.directory, name), callback)
	if err != nil {
		t.Fatal("unable to register watch:", err)
	}
	return registration
}

// probe fires the test directory's probe timer, failing if it isn't armed.
func (e *testEnvironment) probe(t *testing.T) {
	t.Helper()
	if !e.scheduler.timer(t, e.directory).fire() {
		t.Fatal("probe timer not armed")
	}
}

// reportedErrors returns the number of failures reported to the error handler.
func (e *testEnvironment) reportedErrors() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return len(e.errors)
}

// status returns the status of the test directory's watcher.
func (e *testEnvironment) status(t *testing.T) (DirectoryStatus, bool) {
	t.Helper()
	for _, status := range e.monitor.Status() {
		if status.Path == e.directory {
			return status, true
		}
	}
	return DirectoryStatus{}, false
}
