// Package clock provides the injectable time source used for all
// business-day comparisons, so tests can pin the current date instead of
// depending on wall-clock time.
package clock

import "time"

// DayFormat is the calendar-day layout used throughout the persisted state.
const DayFormat = "2006-01-02"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by time.Now.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed is a Clock that always reports the same instant.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }

// Today returns the current business day as an ISO day string.
func Today(c Clock) string {
	return c.Now().Format(DayFormat)
}

// FirstOfMonth returns the first day of the current month as an ISO day string.
func FirstOfMonth(c Clock) string {
	now := c.Now()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format(DayFormat)
}
