// Package timeout provides a bounded deadline used by the busy-poll loops
// that wait on target hardware.
package timeout

import "time"

// Clock abstracts the passage of time so that polling loops can be driven
// deterministically in tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Timeout tracks a deadline computed once when it is created.
//
//	to := timeout.New(clock, 10*time.Second)
//	for to.Check() {
//		if done() {
//			break
//		}
//		clock.Sleep(100 * time.Millisecond)
//	}
type Timeout struct {
	clock    Clock
	deadline time.Time
	expired  bool
}

// New starts a timeout of duration d on the given clock. A nil clock uses
// the system clock.
func New(clock Clock, d time.Duration) *Timeout {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Timeout{
		clock:    clock,
		deadline: clock.Now().Add(d),
	}
}

// Check reports whether the deadline has not yet passed. Once it returns
// false it keeps returning false.
func (t *Timeout) Check() bool {
	if t.expired {
		return false
	}
	if !t.clock.Now().Before(t.deadline) {
		t.expired = true
		return false
	}
	return true
}

// Expired reports whether a previous Check observed the deadline.
func (t *Timeout) Expired() bool {
	return t.expired
}

// Remaining returns the time left before the deadline, or zero.
func (t *Timeout) Remaining() time.Duration {
	left := t.deadline.Sub(t.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}
