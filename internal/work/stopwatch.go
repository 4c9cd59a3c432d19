package work

import "time"

// Stopwatch measures the time since it was started.
type Stopwatch struct {
	start time.Time
	now   func() time.Time
}

// StartStopwatch starts a stopwatch on the wall clock.
func StartStopwatch() Stopwatch {
	return StartStopwatchWith(time.Now)
}

// StartStopwatchWith starts a stopwatch on the given clock.
func StartStopwatchWith(now func() time.Time) Stopwatch {
	return Stopwatch{start: now(), now: now}
}

// Elapsed returns the time since the stopwatch started.
func (s Stopwatch) Elapsed() time.Duration {
	if s.now == nil {
		return 0
	}
	return s.now().Sub(s.start)
}
