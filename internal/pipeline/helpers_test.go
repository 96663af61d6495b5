package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/quake-trends/internal/config"
	"github.com/couchcryptid/quake-trends/internal/domain"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		BaseDir:               dir,
		Download:              true,
		MainStart:             "1900-01-01",
		MainEnd:               "2016-11-01",
		MainMinMagnitude:      6,
		PrecursorRadiusKm:     100,
		PrecursorMinMagnitude: 1,
	}
}

// eventRow builds a USGS CSV row in StandardHeader order.
func eventRow(ts string, lat, lon, mag float64, id string) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []string{
		ts, f(lat), f(lon), "10", f(mag), "mw", "", "", "", "1.0", "us", id,
		"2016-11-01T00:00:00.000Z", "near " + id + ", Somewhere", "earthquake",
		"", "", "", "", "reviewed", "us", "us",
	}
}

func catalogOf(t *testing.T, rows ...[]string) *domain.Catalog {
	t.Helper()
	c, err := domain.ParseCatalog(domain.StandardHeader, rows)
	require.NoError(t, err)
	return c
}

// twoMainEvents is the main-event table of the end-to-end scenario.
func twoMainEvents(t *testing.T) *domain.Catalog {
	return catalogOf(t,
		eventRow("2005-01-01T00:00:00.000Z", 10, 20, 6.5, "main0"),
		eventRow("2010-06-15T00:00:00.000Z", -35, -72, 7.0, "main1"),
	)
}

type fakeQuerier struct {
	mu      sync.Mutex
	calls   []domain.Params
	respond func(params domain.Params) (*domain.Catalog, error)
}

func (q *fakeQuerier) Query(_ context.Context, params domain.Params) (*domain.Catalog, error) {
	q.mu.Lock()
	q.calls = append(q.calls, params)
	q.mu.Unlock()
	return q.respond(params)
}

func (q *fakeQuerier) URL(params domain.Params) string {
	return "https://example.test/query?format=csv&" + params.Encode()
}

func (q *fakeQuerier) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

// precursorResponder answers precursor queries with the main event itself
// plus one smaller nearby event, and main-event queries with mainEvents.
func precursorResponder(t *testing.T, mainEvents *domain.Catalog) func(domain.Params) (*domain.Catalog, error) {
	return func(params domain.Params) (*domain.Catalog, error) {
		lon, ok := params.Get("longitude")
		if !ok {
			return mainEvents, nil
		}
		for _, ev := range mainEvents.Events {
			if strconv.FormatFloat(ev.Longitude, 'f', -1, 64) != lon {
				continue
			}
			return catalogOf(t,
				ev.Fields,
				eventRow(ev.Time.AddDate(0, -1, 0).Format("2006-01-02T15:04:05.000Z"),
					ev.Latitude+0.1, ev.Longitude, 2.0, ev.ID+"-pre"),
			), nil
		}
		return domain.NewCatalog(domain.StandardHeader), nil
	}
}

type fakeRenderer struct {
	historyEvents []domain.Event
	historyPath   string
	curves        []domain.FrequencyCurve
	frequencyPath string
}

func (r *fakeRenderer) MagnitudeHistory(events []domain.Event, path string) error {
	r.historyEvents = events
	r.historyPath = path
	return nil
}

func (r *fakeRenderer) FrequencyCurves(curves []domain.FrequencyCurve, path string) error {
	r.curves = curves
	r.frequencyPath = path
	return nil
}

type fakeManifest struct {
	started  int
	finished []error
	records  []domain.FetchRecord
}

func (m *fakeManifest) StartRun(context.Context) (string, error) {
	m.started++
	return "run-" + strconv.Itoa(m.started), nil
}

func (m *fakeManifest) FinishRun(_ context.Context, _ string, runErr error) error {
	m.finished = append(m.finished, runErr)
	return nil
}

func (m *fakeManifest) RecordFetch(_ context.Context, rec domain.FetchRecord) error {
	m.records = append(m.records, rec)
	return nil
}

type fakePublisher struct {
	events []domain.Event
}

func (p *fakePublisher) Publish(_ context.Context, events []domain.Event) error {
	p.events = append(p.events, events...)
	return nil
}

type countingProgress struct {
	total    int
	added    int
	finished bool
}

func (p *countingProgress) Add(n int) error {
	p.added += n
	return nil
}

func (p *countingProgress) Finish() error {
	p.finished = true
	return nil
}

func domainTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := domain.ParseTime(s)
	require.NoError(t, err)
	return ts
}

func domainHours(n int) time.Duration {
	return time.Duration(n) * time.Hour
}
