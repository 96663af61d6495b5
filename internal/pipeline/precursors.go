package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/quake-trends/internal/adapter/csvstore"
	"github.com/couchcryptid/quake-trends/internal/domain"
	"github.com/couchcryptid/quake-trends/internal/observability"
	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
)

// ErrOrphanPrecursor is returned when a precursor row does not point back at
// the main event whose file it was read from.
var ErrOrphanPrecursor = errors.New("precursor row references the wrong main event")

// PrecursorFetcher downloads the precursors of every main event into one
// file per event and merges them.
type PrecursorFetcher struct {
	querier  Querier
	store    *csvstore.Store
	pacer    *Pacer
	query    domain.PrecursorQuery
	clock    clockwork.Clock
	recorder FetchRecorder
	progress ProgressFactory
	logger   *slog.Logger
	metrics  *observability.Metrics

	total     atomic.Int64
	processed atomic.Int64
}

// PrecursorOption customizes a PrecursorFetcher.
type PrecursorOption func(*PrecursorFetcher)

// PrecursorClock sets the clock used for fetch timestamps.
func PrecursorClock(clock clockwork.Clock) PrecursorOption {
	return func(f *PrecursorFetcher) { f.clock = clock }
}

// PrecursorRecorder records every fetch and skip. Nil disables recording.
func PrecursorRecorder(r FetchRecorder) PrecursorOption {
	return func(f *PrecursorFetcher) { f.recorder = r }
}

// PrecursorProgress reports loop progress. Nil disables reporting.
func PrecursorProgress(p ProgressFactory) PrecursorOption {
	return func(f *PrecursorFetcher) { f.progress = p }
}

// NewPrecursorFetcher creates a PrecursorFetcher.
func NewPrecursorFetcher(q Querier, store *csvstore.Store, pacer *Pacer, query domain.PrecursorQuery, logger *slog.Logger, metrics *observability.Metrics, opts ...PrecursorOption) *PrecursorFetcher {
	f := &PrecursorFetcher{
		querier: q,
		store:   store,
		pacer:   pacer,
		query:   query,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the precursors of each main event whose file does not yet
// exist, then returns the merged table.
func (f *PrecursorFetcher) Fetch(ctx context.Context, mainEvents *domain.Catalog, runID string) (*domain.Catalog, error) {
	f.total.Store(int64(mainEvents.Len()))
	f.processed.Store(0)

	progress := f.newProgress(mainEvents.Len())
	for i, ev := range mainEvents.Events {
		if err := f.fetchOne(ctx, i, ev, runID); err != nil {
			return nil, fmt.Errorf("main event %d: %w", i, err)
		}
		f.processed.Add(1)
		if err := progress.Add(1); err != nil {
			f.logger.Debug("progress update failed", "error", err)
		}
	}
	if err := progress.Finish(); err != nil {
		f.logger.Debug("progress finish failed", "error", err)
	}

	return f.Merge(mainEvents)
}

// Progress returns how many main events the current Fetch has handled out
// of its total.
func (f *PrecursorFetcher) Progress() (processed, total int) {
	return int(f.processed.Load()), int(f.total.Load())
}

func (f *PrecursorFetcher) fetchOne(ctx context.Context, i int, ev domain.Event, runID string) error {
	path := f.store.PrecursorPath(i)
	exists, err := f.store.Exists(path)
	if err != nil {
		return err
	}
	if exists {
		f.metrics.PrecursorFiles.WithLabelValues("skipped").Inc()
		f.logger.Debug("precursors already downloaded", "main_event", i, "path", path)
		f.record(ctx, domain.FetchRecord{RunID: runID, MainEvent: i, File: path, Skipped: true, At: f.clock.Now()})
		return nil
	}

	params, window := f.query.Params(ev)
	if err := f.pacer.Wait(ctx); err != nil {
		return err
	}
	catalog, err := f.querier.Query(ctx, params)
	if err != nil {
		return err
	}
	if catalog == nil {
		catalog = domain.NewCatalog(domain.StandardHeader)
	}
	catalog.TagMainEvent(i)

	if n := f.query.OutsideRadius(ev, catalog.Events); n > 0 {
		f.logger.Warn("precursors outside requested radius",
			"main_event", i, "count", n, "radius_km", f.query.RadiusKm)
	}

	size, err := f.store.Save(path, catalog)
	if err != nil {
		return fmt.Errorf("save precursors: %w", err)
	}
	f.metrics.PrecursorFiles.WithLabelValues("fetched").Inc()
	f.metrics.RowsWritten.WithLabelValues("precursors").Add(float64(catalog.Len()))
	f.logger.Info("precursors saved",
		"main_event", i,
		"rows", catalog.Len(),
		"window_start", window.Start.Format(domain.QueryTimeLayout),
		"window_end", window.End.Format(domain.QueryTimeLayout),
		"size", humanize.Bytes(uint64(size)), //nolint:gosec // size is never negative
	)
	f.record(ctx, domain.FetchRecord{
		RunID:     runID,
		MainEvent: i,
		File:      path,
		URL:       f.querier.URL(params),
		Rows:      catalog.Len(),
		Bytes:     size,
		At:        f.clock.Now(),
	})
	return nil
}

// Merge reloads every per-event file in main-event order, checks that each
// row points back at its main event, and writes the concatenation to the
// merged table.
func (f *PrecursorFetcher) Merge(mainEvents *domain.Catalog) (*domain.Catalog, error) {
	var merged *domain.Catalog
	for i := range mainEvents.Events {
		path := f.store.PrecursorPath(i)
		catalog, err := f.store.Load(path)
		if err != nil {
			return nil, err
		}
		for row, ev := range catalog.Events {
			if ev.MainEvent != i {
				return nil, fmt.Errorf("%w: %s row %d has main_event %d, want %d",
					ErrOrphanPrecursor, path, row+1, ev.MainEvent, i)
			}
		}
		if merged == nil {
			merged = catalog
			continue
		}
		if err := merged.Append(catalog); err != nil {
			return nil, fmt.Errorf("merge %s: %w", path, err)
		}
	}
	if merged == nil {
		merged = domain.NewCatalog(append(append([]string(nil), domain.StandardHeader...), domain.MainEventColumn))
	}

	path := f.store.MergedPath()
	size, err := f.store.Save(path, merged)
	if err != nil {
		return nil, fmt.Errorf("save merged precursors: %w", err)
	}
	f.metrics.RowsWritten.WithLabelValues("merged").Add(float64(merged.Len()))
	f.logger.Info("merged precursors saved",
		"files", mainEvents.Len(),
		"rows", merged.Len(),
		"path", path,
		"size", humanize.Bytes(uint64(size)), //nolint:gosec // size is never negative
	)
	return merged, nil
}

func (f *PrecursorFetcher) record(ctx context.Context, rec domain.FetchRecord) {
	if f.recorder == nil {
		return
	}
	if err := f.recorder.RecordFetch(ctx, rec); err != nil {
		f.logger.Warn("record fetch failed", "main_event", rec.MainEvent, "error", err)
	}
}

func (f *PrecursorFetcher) newProgress(total int) ProgressReporter {
	if f.progress == nil {
		return noopProgress{}
	}
	return f.progress(total)
}

type noopProgress struct{}

func (noopProgress) Add(int) error { return nil }
func (noopProgress) Finish() error { return nil }
