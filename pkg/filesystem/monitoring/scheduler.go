package monitoring

import (
	"sync"
	"time"

	"github.com/mutagen-io/filemonitor/pkg/logging"
)

// Timer is a re-armable one-shot timer.
type Timer interface {
	// Set (re)arms the timer to fire once after the specified duration,
	// replacing any pending firing.
	Set(duration time.Duration)
	// Stop disarms the timer. A callback that has already started may still be
	// running when Stop returns.
	Stop()
}

// Scheduler is the timer facility used by directory watchers to schedule
// directory probes.
type Scheduler interface {
	// NewTimer creates a new disarmed timer that invokes callback on a
	// scheduler goroutine each time it fires. The label identifies the timer
	// in diagnostics.
	NewTimer(label string, callback func()) Timer
}

// goroutineScheduler is the default Scheduler. Its timers are backed by
// time.AfterFunc, so each firing runs on its own goroutine.
type goroutineScheduler struct {
	// logger is the scheduler's logger.
	logger *logging.Logger
}

// NewTimer implements Scheduler.NewTimer.
func (s *goroutineScheduler) NewTimer(label string, callback func()) Timer {
	return &goroutineTimer{
		label:    label,
		callback: callback,
		logger:   s.logger,
	}
}

// goroutineTimer implements Timer for goroutineScheduler.
type goroutineTimer struct {
	// label is the timer's label.
	label string
	// callback is the timer's callback.
	callback func()
	// logger is the timer's logger.
	logger *logging.Logger
	// lock serializes access to timer.
	lock sync.Mutex
	// timer is the underlying timer. It is created lazily on the first call to
	// Set.
	timer *time.Timer
}

// Set implements Timer.Set.
func (t *goroutineTimer) Set(duration time.Duration) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.logger.Tracef("Arming %s for %s", t.label, duration)
	if t.timer == nil {
		t.timer = time.AfterFunc(duration, t.callback)
		return
	}
	t.timer.Stop()
	t.timer.Reset(duration)
}

// Stop implements Timer.Stop.
func (t *goroutineTimer) Stop() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
}
