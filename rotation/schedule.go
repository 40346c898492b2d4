package rotation

import (
	"time"
)

const (
	PrimaryPeriod   = 15 * time.Minute
	SecondaryPeriod = 24 * time.Hour
)

// Schedule maps wall-clock time to intervals.
type Schedule struct {
	Epoch  time.Time
	Period time.Duration
}

// IntervalAt returns the interval covering t. Times before the epoch map to
// interval 0.
func (s Schedule) IntervalAt(t time.Time) Interval {
	if s.Period <= 0 || !t.After(s.Epoch) {
		return 0
	}
	return Interval(t.Sub(s.Epoch) / s.Period)
}

// Start returns the beginning of interval i.
func (s Schedule) Start(i Interval) time.Time {
	return s.Epoch.Add(time.Duration(i) * s.Period)
}

// Window returns the first interval overlapping [from, to] and the number of
// intervals up to and including the one covering to. At least one interval
// is always returned.
func (s Schedule) Window(from, to time.Time) (Interval, int) {
	first := s.IntervalAt(from)
	last := s.IntervalAt(to)
	if last < first {
		return first, 1
	}
	return first, int(last-first) + 1
}
