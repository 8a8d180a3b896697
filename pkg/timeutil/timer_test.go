package timeutil

import (
	"testing"
	"time"
)

// TestStopAndDrainFiredTimer tests that a fired timer is drained.
func TestStopAndDrainFiredTimer(t *testing.T) {
	// Create a timer and wait for it to fire.
	timer := time.NewTimer(0)
	time.Sleep(10 * time.Millisecond)

	// Stop and drain it.
	StopAndDrainTimer(timer)

	// Ensure that nothing is left in the channel.
	select {
	case <-timer.C:
		t.Error("timer channel was not drained")
	default:
	}
}

// TestResetTimer tests that a reset timer fires after the new duration.
func TestResetTimer(t *testing.T) {
	// Create a timer that won't fire during the test and reset it to fire
	// immediately.
	timer := time.NewTimer(time.Hour)
	ResetTimer(timer, 0)

	// Wait for it.
	select {
	case <-timer.C:
	case <-time.After(time.Second):
		t.Error("reset timer did not fire")
	}
}
