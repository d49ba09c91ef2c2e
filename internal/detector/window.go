package detector

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// Window holds the reference times shared by every pass of one run.
type Window struct {
	Now         time.Time
	WeekAgo     time.Time
	TwoWeeksAgo time.Time
	Yesterday   time.Time
}

// NewWindow derives the reference times from now.
func NewWindow(now time.Time) Window {
	return Window{
		Now:         now,
		WeekAgo:     now.Add(-7 * day),
		TwoWeeksAgo: now.Add(-14 * day),
		Yesterday:   now.Add(-day),
	}
}

// DaysSince returns the whole days elapsed between t and Now, rounded down.
func (w Window) DaysSince(t time.Time) int {
	return int(math.Floor(float64(w.Now.Sub(t)) / float64(day)))
}
