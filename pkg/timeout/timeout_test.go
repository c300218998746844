package timeout

import (
	"testing"
	"time"
)

func TestTimeoutExpiresAfterDeadline(t *testing.T) {
	clock := NewFakeClock()
	to := New(clock, 10*time.Second)

	polls := 0
	for to.Check() {
		polls++
		clock.Sleep(100 * time.Millisecond)
	}

	if polls != 100 {
		t.Fatalf("polls = %d, want 100", polls)
	}
	if !to.Expired() {
		t.Fatalf("expected timeout to report expired")
	}
	if to.Check() {
		t.Fatalf("Check returned true after expiry")
	}
	if to.Remaining() != 0 {
		t.Fatalf("Remaining = %v, want 0", to.Remaining())
	}
}

func TestTimeoutBreakBeforeExpiry(t *testing.T) {
	clock := NewFakeClock()
	to := New(clock, time.Second)

	if !to.Check() {
		t.Fatalf("fresh timeout should not be expired")
	}
	if to.Expired() {
		t.Fatalf("Expired true before deadline")
	}
	if got := to.Remaining(); got != time.Second {
		t.Fatalf("Remaining = %v, want 1s", got)
	}
}

func TestFakeClockStep(t *testing.T) {
	clock := NewFakeClock()
	clock.Step = time.Second
	to := New(clock, 3*time.Second)

	polls := 0
	for to.Check() {
		polls++
	}
	// New consumed one step, each Check consumes one more.
	if polls != 2 {
		t.Fatalf("polls = %d, want 2", polls)
	}
}

func TestZeroTimeoutNeverChecksTrue(t *testing.T) {
	to := New(NewFakeClock(), 0)
	if to.Check() {
		t.Fatalf("zero timeout should be expired immediately")
	}
}
