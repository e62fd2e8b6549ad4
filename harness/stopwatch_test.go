package harness

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func TestStopwatch(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0)}
	s := &Stopwatch{now: clock.now}
	s.Restart()

	clock.t = clock.t.Add(1500 * time.Nanosecond)

	if got := s.ElapsedNanoseconds(); got != 1500 {
		t.Errorf("ElapsedNanoseconds() = %d, want 1500", got)
	}

	if got := s.ElapsedAndRestart(); got != 1500*time.Nanosecond {
		t.Errorf("ElapsedAndRestart() = %v, want 1.5µs", got)
	}

	if got := s.Elapsed(); got != 0 {
		t.Errorf("Elapsed() after restart = %v, want 0", got)
	}
}

func TestStopwatchNeverNegative(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0)}
	s := &Stopwatch{now: clock.now}
	s.Restart()

	clock.t = clock.t.Add(-time.Second)

	if got := s.Elapsed(); got != 0 {
		t.Errorf("Elapsed() = %v, want 0", got)
	}
}

func TestStopwatchMonotonic(t *testing.T) {
	s := NewStopwatch()

	prev := s.Elapsed()
	for i := 0; i < 100; i++ {
		cur := s.Elapsed()
		if cur < prev {
			t.Fatalf("elapsed went backwards: %v after %v", cur, prev)
		}
		prev = cur
	}
}
