package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Column names read by the typed event views.
const (
	ColumnTime      = "time"
	ColumnLatitude  = "latitude"
	ColumnLongitude = "longitude"
	ColumnDepth     = "depth"
	ColumnMagnitude = "mag"
	ColumnMagType   = "magType"
	ColumnID        = "id"
	ColumnPlace     = "place"
	ColumnType      = "type"

	// MainEventColumn links a precursor row to its main event's row position.
	MainEventColumn = "main_event"
)

// NoMainEvent is the MainEvent value of rows without a main_event column.
const NoMainEvent = -1

// StandardHeader is the column set of the USGS CSV format. It is used for
// empty result sets, which the service returns without a header.
var StandardHeader = []string{
	"time", "latitude", "longitude", "depth", "mag", "magType", "nst", "gap",
	"dmin", "rms", "net", "id", "updated", "place", "type", "horizontalError",
	"depthError", "magError", "magNst", "status", "locationSource", "magSource",
}

// ErrMissingColumn is returned when a header lacks a column the typed views need.
var ErrMissingColumn = errors.New("missing required column")

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Event is one catalog row. Fields holds the raw CSV values aligned with the
// owning catalog's header; the typed fields are parsed views of it.
type Event struct {
	Time      time.Time
	Latitude  float64
	Longitude float64
	Depth     float64 // NaN when unreported
	Magnitude float64 // NaN when unreported
	MagType   string
	ID        string
	Place     string
	Type      string
	MainEvent int

	Fields []string
}

// Catalog is an ordered table of events sharing one header.
type Catalog struct {
	Header []string
	Events []Event
}

// NewCatalog returns an empty catalog with a copy of header.
func NewCatalog(header []string) *Catalog {
	return &Catalog{Header: append([]string(nil), header...)}
}

// Len reports the number of events.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Events)
}

// ColumnIndex returns the position of name in the header, or -1.
func (c *Catalog) ColumnIndex(name string) int {
	return indexOf(c.Header, name)
}

// TagMainEvent sets the main_event column of every row to id, adding the
// column when the catalog does not have it yet.
func (c *Catalog) TagMainEvent(id int) {
	col := c.ColumnIndex(MainEventColumn)
	if col < 0 {
		c.Header = append(c.Header, MainEventColumn)
		col = len(c.Header) - 1
	}
	value := strconv.Itoa(id)
	for i := range c.Events {
		ev := &c.Events[i]
		for len(ev.Fields) <= col {
			ev.Fields = append(ev.Fields, "")
		}
		ev.Fields[col] = value
		ev.MainEvent = id
	}
}

// Append adds the events of other, which must share this catalog's header.
func (c *Catalog) Append(other *Catalog) error {
	if other == nil {
		return nil
	}
	if !sameHeader(c.Header, other.Header) {
		return fmt.Errorf("append catalog: header mismatch: %q vs %q",
			strings.Join(c.Header, ","), strings.Join(other.Header, ","))
	}
	c.Events = append(c.Events, other.Events...)
	return nil
}

// ParseCatalog builds a catalog from a CSV header and its data rows.
func ParseCatalog(header []string, rows [][]string) (*Catalog, error) {
	idx, err := newColumnIndex(header)
	if err != nil {
		return nil, err
	}

	c := NewCatalog(header)
	c.Events = make([]Event, 0, len(rows))
	for i, row := range rows {
		ev, err := idx.parse(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		c.Events = append(c.Events, ev)
	}
	return c, nil
}

// ParseTime parses a catalog timestamp. Values without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q: unrecognized format", s)
}

type columnIndex struct {
	time, lat, lon, depth, mag, magType, id, place, typ, mainEvent int
}

func newColumnIndex(header []string) (columnIndex, error) {
	idx := columnIndex{
		time:      indexOf(header, ColumnTime),
		lat:       indexOf(header, ColumnLatitude),
		lon:       indexOf(header, ColumnLongitude),
		depth:     indexOf(header, ColumnDepth),
		mag:       indexOf(header, ColumnMagnitude),
		magType:   indexOf(header, ColumnMagType),
		id:        indexOf(header, ColumnID),
		place:     indexOf(header, ColumnPlace),
		typ:       indexOf(header, ColumnType),
		mainEvent: indexOf(header, MainEventColumn),
	}
	for name, pos := range map[string]int{
		ColumnTime:      idx.time,
		ColumnLatitude:  idx.lat,
		ColumnLongitude: idx.lon,
		ColumnMagnitude: idx.mag,
	} {
		if pos < 0 {
			return columnIndex{}, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return idx, nil
}

func (idx columnIndex) parse(row []string) (Event, error) {
	field := func(pos int) string {
		if pos < 0 || pos >= len(row) {
			return ""
		}
		return row[pos]
	}

	t, err := ParseTime(field(idx.time))
	if err != nil {
		return Event{}, err
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(field(idx.lat)), 64)
	if err != nil {
		return Event{}, fmt.Errorf("parse latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(field(idx.lon)), 64)
	if err != nil {
		return Event{}, fmt.Errorf("parse longitude: %w", err)
	}

	mainEvent := NoMainEvent
	if idx.mainEvent >= 0 {
		mainEvent, err = strconv.Atoi(strings.TrimSpace(field(idx.mainEvent)))
		if err != nil {
			return Event{}, fmt.Errorf("parse %s: %w", MainEventColumn, err)
		}
	}

	return Event{
		Time:      t,
		Latitude:  lat,
		Longitude: lon,
		Depth:     parseFloatOrNaN(field(idx.depth)),
		Magnitude: parseFloatOrNaN(field(idx.mag)),
		MagType:   field(idx.magType),
		ID:        field(idx.id),
		Place:     field(idx.place),
		Type:      field(idx.typ),
		MainEvent: mainEvent,
		Fields:    append([]string(nil), row...),
	}, nil
}

// parseFloatOrNaN parses an optional numeric field, returning NaN when it is
// empty or malformed.
func parseFloatOrNaN(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func sameHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
