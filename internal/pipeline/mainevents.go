package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/quake-trends/internal/adapter/csvstore"
	"github.com/couchcryptid/quake-trends/internal/domain"
	"github.com/couchcryptid/quake-trends/internal/observability"
	"github.com/dustin/go-humanize"
)

// ErrMainEventsChanged is returned when a re-fetched main-event table no
// longer lines up with the precursor files already on disk.
var ErrMainEventsChanged = errors.New("main events changed since precursors were downloaded")

// MainEventFetcher downloads and persists the strong earthquakes.
type MainEventFetcher struct {
	querier Querier
	store   *csvstore.Store
	pacer   *Pacer
	query   domain.MainEventQuery
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewMainEventFetcher creates a MainEventFetcher.
func NewMainEventFetcher(q Querier, store *csvstore.Store, pacer *Pacer, query domain.MainEventQuery, logger *slog.Logger, metrics *observability.Metrics) *MainEventFetcher {
	return &MainEventFetcher{
		querier: q,
		store:   store,
		pacer:   pacer,
		query:   query,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch issues the main-event query, writes the result to the main-events
// table, and returns it.
func (f *MainEventFetcher) Fetch(ctx context.Context) (*domain.Catalog, error) {
	params := f.query.Params()
	if err := f.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	catalog, err := f.querier.Query(ctx, params)
	if err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = domain.NewCatalog(domain.StandardHeader)
	}

	if err := f.checkAlignment(catalog); err != nil {
		return nil, err
	}

	path := f.store.MainEventsPath()
	size, err := f.store.Save(path, catalog)
	if err != nil {
		return nil, fmt.Errorf("save main events: %w", err)
	}
	f.metrics.RowsWritten.WithLabelValues("main_events").Add(float64(catalog.Len()))
	f.logger.Info("main events saved",
		"rows", catalog.Len(),
		"path", path,
		"size", humanize.Bytes(uint64(size)), //nolint:gosec // size is never negative
	)
	return catalog, nil
}

// checkAlignment compares catalog with the persisted main-event table.
// Precursor files are keyed by row position, so every row that already has
// one must still hold the same event.
func (f *MainEventFetcher) checkAlignment(catalog *domain.Catalog) error {
	exists, err := f.store.Exists(f.store.MainEventsPath())
	if err != nil || !exists {
		return err
	}
	previous, err := LoadMainEvents(f.store)
	if err != nil {
		return err
	}

	for i, ev := range catalog.Events {
		hasPrecursors, err := f.store.Exists(f.store.PrecursorPath(i))
		if err != nil {
			return err
		}
		if !hasPrecursors {
			continue
		}
		if i >= previous.Len() || eventKey(previous.Events[i]) != eventKey(ev) {
			return fmt.Errorf("%w: row %d now holds %s; remove the precursor files under %s or use a new base directory",
				ErrMainEventsChanged, i, eventKey(ev), f.store.Dir())
		}
	}
	return nil
}

func eventKey(ev domain.Event) string {
	if ev.ID != "" {
		return ev.ID
	}
	return ev.Time.Format(domain.QueryTimeLayout)
}

// LoadMainEvents reads the persisted main-events table.
func LoadMainEvents(store *csvstore.Store) (*domain.Catalog, error) {
	catalog, err := store.Load(store.MainEventsPath())
	if err != nil {
		return nil, fmt.Errorf("load main events: %w", err)
	}
	return catalog, nil
}
