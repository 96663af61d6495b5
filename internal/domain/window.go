package domain

import "time"

// QueryTimeLayout is the timestamp format sent to the event service.
const QueryTimeLayout = "2006-01-02T15:04:05"

// HistoricalFloor is the earliest start a precursor window may have.
var HistoricalFloor = time.Date(1899, time.January, 1, 0, 0, 0, 0, time.UTC)

// Window is a closed time range for a precursor query.
type Window struct {
	Start time.Time
	End   time.Time
}

// PrecursorWindow covers the year before t and ends one second after t so
// the main event itself is included. The start never precedes floor.
func PrecursorWindow(t, floor time.Time) Window {
	start := SubtractYear(t)
	if start.Before(floor) {
		start = floor
	}
	return Window{
		Start: start,
		End:   t.Add(time.Second),
	}
}

// SubtractYear moves t back one calendar year. February 29 maps to
// February 28 instead of rolling over into March.
func SubtractYear(t time.Time) time.Time {
	y, m, d := t.Date()
	if m == time.February && d == 29 {
		d = 28
	}
	return time.Date(y-1, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
