package harness

import "time"

// Stopwatch measures time since its last restart on the monotonic clock.
type Stopwatch struct {
	now   func() time.Time
	start time.Time
}

// NewStopwatch returns a Stopwatch started now.
func NewStopwatch() *Stopwatch {
	s := &Stopwatch{now: time.Now}
	s.Restart()

	return s
}

// Restart resets the start instant to now.
func (s *Stopwatch) Restart() {
	s.start = s.now()
}

// Elapsed returns the time since the last restart, never negative.
func (s *Stopwatch) Elapsed() time.Duration {
	d := s.now().Sub(s.start)
	if d < 0 {
		return 0
	}

	return d
}

// ElapsedNanoseconds is Elapsed in whole nanoseconds.
func (s *Stopwatch) ElapsedNanoseconds() uint64 {
	return uint64(s.Elapsed().Nanoseconds())
}

// ElapsedAndRestart returns Elapsed and restarts the stopwatch.
func (s *Stopwatch) ElapsedAndRestart() time.Duration {
	d := s.Elapsed()
	s.Restart()

	return d
}
