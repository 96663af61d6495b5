package domain

import (
	"math"
	"sort"
	"time"
)

// FrequencyOptions tunes the micro-event frequency analysis.
type FrequencyOptions struct {
	Since         time.Time // events before Since are ignored
	MagnitudeDrop float64   // micro events are below group max minus this
	MinGroupSize  int       // groups need strictly more micro events than this
}

// DefaultFrequencyOptions restricts the analysis to the instrumental era
// (1970 onwards) and to well-sampled groups.
func DefaultFrequencyOptions() FrequencyOptions {
	return FrequencyOptions{
		Since:         time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC),
		MagnitudeDrop: 3,
		MinGroupSize:  2000,
	}
}

// FrequencyPoint is one micro event on a frequency curve.
type FrequencyPoint struct {
	Time       time.Time
	DaysBefore float64
	Frequency  float64 // events per day; +Inf when DaysBefore is 0
}

// FrequencyCurve is the micro-event frequency history of one main event.
type FrequencyCurve struct {
	MainEvent int
	Points    []FrequencyPoint
}

// MicroEventFrequency groups events by main event and derives, for every
// micro event, the number of the group's micro events up to that moment
// divided by the days elapsed since one year before the group's last micro
// event. Curves are ordered by main event id.
func MicroEventFrequency(events []Event, opts FrequencyOptions) []FrequencyCurve {
	groups := make(map[int][]Event)
	for _, ev := range events {
		if ev.Time.Before(opts.Since) {
			continue
		}
		groups[ev.MainEvent] = append(groups[ev.MainEvent], ev)
	}

	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var curves []FrequencyCurve
	for _, id := range ids {
		micro := microEvents(groups[id], opts.MagnitudeDrop)
		if len(micro) <= opts.MinGroupSize {
			continue
		}
		curves = append(curves, frequencyCurve(id, micro))
	}
	return curves
}

// microEvents keeps the events whose magnitude is below the group maximum
// minus drop. Events without a magnitude never qualify.
func microEvents(group []Event, drop float64) []Event {
	maxMag := math.Inf(-1)
	for _, ev := range group {
		if !math.IsNaN(ev.Magnitude) && ev.Magnitude > maxMag {
			maxMag = ev.Magnitude
		}
	}
	if math.IsInf(maxMag, -1) {
		return nil
	}

	threshold := maxMag - drop
	micro := make([]Event, 0, len(group))
	for _, ev := range group {
		if ev.Magnitude < threshold {
			micro = append(micro, ev)
		}
	}
	return micro
}

func frequencyCurve(id int, micro []Event) FrequencyCurve {
	sorted := make([]Event, len(micro))
	copy(sorted, micro)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	ref := SubtractYear(sorted[len(sorted)-1].Time)
	points := make([]FrequencyPoint, len(sorted))
	for i, ev := range sorted {
		days := ev.Time.Sub(ref).Hours() / 24
		points[i] = FrequencyPoint{
			Time:       ev.Time,
			DaysBefore: days,
			Frequency:  float64(i+1) / days,
		}
	}
	return FrequencyCurve{MainEvent: id, Points: points}
}
