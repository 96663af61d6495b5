package domain

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Param is one query key/value pair.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered parameter list. Unlike url.Values it keeps insertion
// order when encoded.
type Params []Param

// Add returns p with key=value appended.
func (p Params) Add(key, value string) Params {
	return append(p, Param{Key: key, Value: value})
}

// AddFloat appends a float value in its shortest decimal form.
func (p Params) AddFloat(key string, value float64) Params {
	return p.Add(key, strconv.FormatFloat(value, 'f', -1, 64))
}

// Get returns the value of the first parameter named key.
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Encode joins the escaped pairs with '&' in insertion order.
func (p Params) Encode() string {
	parts := make([]string, len(p))
	for i, kv := range p {
		parts[i] = url.QueryEscape(kv.Key) + "=" + url.QueryEscape(kv.Value)
	}
	return strings.Join(parts, "&")
}

// MainEventQuery selects the strong earthquakes whose precursors are studied.
type MainEventQuery struct {
	Start        string
	End          string
	EventType    string
	MinMagnitude float64
}

// DefaultMainEventQuery covers every magnitude 6+ earthquake from 1900 up to
// November 2016.
func DefaultMainEventQuery() MainEventQuery {
	return MainEventQuery{
		Start:        "1900-01-01",
		End:          "2016-11-01",
		EventType:    "earthquake",
		MinMagnitude: 6,
	}
}

// Params renders the query parameters.
func (q MainEventQuery) Params() Params {
	return Params{}.
		Add("starttime", q.Start).
		Add("endtime", q.End).
		Add("eventtype", q.EventType).
		AddFloat("minmagnitude", q.MinMagnitude)
}

// PrecursorQuery selects the events around one main event.
type PrecursorQuery struct {
	EventType    string
	MinMagnitude float64
	RadiusKm     float64
	Floor        time.Time
}

// DefaultPrecursorQuery searches 100 km around the main event for magnitude
// 1.0+ earthquakes.
func DefaultPrecursorQuery() PrecursorQuery {
	return PrecursorQuery{
		EventType:    "earthquake",
		MinMagnitude: 1.0,
		RadiusKm:     100,
		Floor:        HistoricalFloor,
	}
}

// Params renders the query for main and returns the time window it covers.
func (q PrecursorQuery) Params(main Event) (Params, Window) {
	w := PrecursorWindow(main.Time, q.Floor)
	return Params{}.
		Add("starttime", w.Start.Format(QueryTimeLayout)).
		Add("endtime", w.End.Format(QueryTimeLayout)).
		Add("eventtype", q.EventType).
		AddFloat("minmagnitude", q.MinMagnitude).
		AddFloat("longitude", main.Longitude).
		AddFloat("latitude", main.Latitude).
		AddFloat("maxradiuskm", q.RadiusKm), w
}

// OutsideRadius counts the events farther from main than the query radius.
// The service filters by radius already, so a non-zero count points at a
// mismatch between the request and the response.
func (q PrecursorQuery) OutsideRadius(main Event, events []Event) int {
	n := 0
	for _, ev := range events {
		if DistanceKm(main.Latitude, main.Longitude, ev.Latitude, ev.Longitude) > q.RadiusKm+radiusToleranceKm {
			n++
		}
	}
	return n
}
