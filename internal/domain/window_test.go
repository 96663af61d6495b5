package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrecursorWindow(t *testing.T) {
	tests := []struct {
		name  string
		event time.Time
		start time.Time
	}{
		{
			name:  "ordinary event",
			event: time.Date(2005, 1, 1, 10, 0, 0, 0, time.UTC),
			start: time.Date(2004, 1, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "event in 1900 reaches into 1899",
			event: time.Date(1900, 10, 9, 12, 25, 0, 0, time.UTC),
			start: time.Date(1899, 10, 9, 12, 25, 0, 0, time.UTC),
		},
		{
			name:  "leap day clamps to february 28",
			event: time.Date(2004, 2, 29, 6, 0, 0, 0, time.UTC),
			start: time.Date(2003, 2, 28, 6, 0, 0, 0, time.UTC),
		},
		{
			name:  "floor clamps early events",
			event: time.Date(1899, 3, 1, 0, 0, 0, 0, time.UTC),
			start: HistoricalFloor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := PrecursorWindow(tt.event, HistoricalFloor)
			assert.Equal(t, tt.start, w.Start)
			assert.Equal(t, tt.event.Add(time.Second), w.End)
		})
	}
}

func TestPrecursorWindow_Format(t *testing.T) {
	w := PrecursorWindow(time.Date(1900, 5, 1, 23, 59, 59, 900_000_000, time.UTC), HistoricalFloor)
	assert.Equal(t, "1899-05-01T23:59:59", w.Start.Format(QueryTimeLayout))
	assert.Equal(t, "1900-05-02T00:00:00", w.End.Format(QueryTimeLayout))
}

func TestSubtractYear(t *testing.T) {
	assert.Equal(t,
		time.Date(2015, 12, 31, 23, 59, 59, 1, time.UTC),
		SubtractYear(time.Date(2016, 12, 31, 23, 59, 59, 1, time.UTC)))
	assert.Equal(t,
		time.Date(2015, 2, 28, 0, 0, 0, 0, time.UTC),
		SubtractYear(time.Date(2016, 2, 29, 0, 0, 0, 0, time.UTC)))
}
