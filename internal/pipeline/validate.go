package pipeline

import (
	"fmt"

	"github.com/couchcryptid/quake-trends/internal/adapter/csvstore"
)

// ValidationReport summarizes the consistency of a persisted dataset.
type ValidationReport struct {
	MainEvents     int
	PrecursorFiles int
	PrecursorRows  int
	MergedRows     int
	MissingFiles   []int
	Problems       []string
}

// OK reports whether the dataset passed every check.
func (r *ValidationReport) OK() bool {
	return len(r.MissingFiles) == 0 && len(r.Problems) == 0
}

func (r *ValidationReport) problemf(format string, args ...any) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

// Validate checks the dataset under store: every main event has a
// precursor file whose rows point back at it, and the merged table holds
// exactly those rows with valid back-references. Only a missing or
// unreadable main-events table is returned as an error.
func Validate(store *csvstore.Store) (*ValidationReport, error) {
	mainEvents, err := LoadMainEvents(store)
	if err != nil {
		return nil, err
	}

	report := &ValidationReport{MainEvents: mainEvents.Len()}
	for i := range mainEvents.Events {
		path := store.PrecursorPath(i)
		exists, err := store.Exists(path)
		if err != nil {
			return nil, err
		}
		if !exists {
			report.MissingFiles = append(report.MissingFiles, i)
			continue
		}

		catalog, err := store.Load(path)
		if err != nil {
			report.problemf("%v", err)
			continue
		}
		report.PrecursorFiles++
		report.PrecursorRows += catalog.Len()
		for row, ev := range catalog.Events {
			if ev.MainEvent != i {
				report.problemf("%s row %d: main_event %d, want %d", path, row+1, ev.MainEvent, i)
				break
			}
		}
	}

	merged, err := store.Load(store.MergedPath())
	if err != nil {
		report.problemf("%v", err)
		return report, nil
	}
	report.MergedRows = merged.Len()
	if len(report.MissingFiles) == 0 && report.MergedRows != report.PrecursorRows {
		report.problemf("merged table has %d rows, per-event files have %d", report.MergedRows, report.PrecursorRows)
	}
	for row, ev := range merged.Events {
		if ev.MainEvent < 0 || ev.MainEvent >= report.MainEvents {
			report.problemf("%s row %d: main_event %d does not reference a main event", store.MergedPath(), row+1, ev.MainEvent)
		}
	}
	return report, nil
}
