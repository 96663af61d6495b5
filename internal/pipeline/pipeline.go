package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/quake-trends/internal/adapter/csvstore"
	"github.com/couchcryptid/quake-trends/internal/config"
	"github.com/couchcryptid/quake-trends/internal/domain"
	"github.com/couchcryptid/quake-trends/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Querier fetches the catalog matching an ordered parameter list.
type Querier interface {
	Query(ctx context.Context, params domain.Params) (*domain.Catalog, error)
	URL(params domain.Params) string
}

// Renderer draws the two exploratory charts.
type Renderer interface {
	MagnitudeHistory(events []domain.Event, path string) error
	FrequencyCurves(curves []domain.FrequencyCurve, path string) error
}

// Publisher forwards merged precursor events downstream.
type Publisher interface {
	Publish(ctx context.Context, events []domain.Event) error
}

// FetchRecorder logs per-event fetch outcomes.
type FetchRecorder interface {
	RecordFetch(ctx context.Context, rec domain.FetchRecord) error
}

// Manifest tracks runs and their fetches.
type Manifest interface {
	FetchRecorder
	StartRun(ctx context.Context) (string, error)
	FinishRun(ctx context.Context, runID string, runErr error) error
}

// ProgressReporter is advanced once per main event.
type ProgressReporter interface {
	Add(n int) error
	Finish() error
}

// ProgressFactory creates a reporter for a loop of total steps.
type ProgressFactory func(total int) ProgressReporter

// Pipeline runs the download stages (when enabled) followed by plotting.
type Pipeline struct {
	cfg        *config.Config
	store      *csvstore.Store
	mainEvents *MainEventFetcher
	precursors *PrecursorFetcher
	renderer   Renderer
	publisher  Publisher
	manifest   Manifest
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool

	mu    sync.Mutex
	stage string
}

type options struct {
	clock     clockwork.Clock
	publisher Publisher
	manifest  Manifest
	progress  ProgressFactory
}

// Option customizes a Pipeline.
type Option func(*options)

// WithClock replaces the clock used for request pacing and fetch timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithPublisher publishes the merged precursors after a download.
func WithPublisher(p Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithManifest records runs and fetches.
func WithManifest(m Manifest) Option {
	return func(o *options) { o.manifest = m }
}

// WithProgress reports precursor loop progress.
func WithProgress(f ProgressFactory) Option {
	return func(o *options) { o.progress = f }
}

// New wires the pipeline stages for cfg.
func New(cfg *config.Config, q Querier, r Renderer, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	store := csvstore.New(cfg.BaseDir)
	pacer := NewPacer(o.clock, cfg.RequestInterval)

	var recorder FetchRecorder
	if o.manifest != nil {
		recorder = o.manifest
	}

	return &Pipeline{
		cfg:        cfg,
		store:      store,
		mainEvents: NewMainEventFetcher(q, store, pacer, cfg.MainEventQuery(), logger, metrics),
		precursors: NewPrecursorFetcher(q, store, pacer, cfg.PrecursorQuery(), logger, metrics,
			PrecursorClock(o.clock), PrecursorRecorder(recorder), PrecursorProgress(o.progress)),
		renderer:  r,
		publisher: o.publisher,
		manifest:  o.manifest,
		logger:    logger,
		metrics:   metrics,
		stage:     domain.StageIdle,
	}
}

// Status reports the current stage and precursor loop progress.
func (p *Pipeline) Status() domain.PipelineStatus {
	p.mu.Lock()
	stage := p.stage
	p.mu.Unlock()

	processed, total := p.precursors.Progress()
	return domain.PipelineStatus{Stage: stage, MainEvents: total, Processed: processed}
}

func (p *Pipeline) setStage(stage string) {
	p.mu.Lock()
	p.stage = stage
	p.mu.Unlock()
	p.logger.Debug("pipeline stage", "stage", stage)
}

// CheckReadiness returns nil once the pipeline has started working on the
// dataset, or an error describing why it is not ready yet.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not started processing yet")
	}
	return nil
}

// Run executes one batch: main events and precursors when downloading is
// enabled, optional publishing, then both charts.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	p.logger.Info("pipeline started", "base_dir", p.store.Dir(), "download", p.cfg.Download)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var runID string
	if p.manifest != nil {
		if runID, err = p.manifest.StartRun(ctx); err != nil {
			return fmt.Errorf("start run: %w", err)
		}
		defer func() {
			// The run context may already be cancelled; the outcome is still recorded.
			if ferr := p.manifest.FinishRun(context.WithoutCancel(ctx), runID, err); ferr != nil {
				p.logger.Warn("record run outcome failed", "run_id", runID, "error", ferr)
			}
		}()
	}

	defer func() {
		if err != nil {
			p.setStage(domain.StageFailed)
		}
	}()

	if p.cfg.Download {
		if err := p.download(ctx, runID); err != nil {
			return err
		}
	} else {
		p.ready.Store(true)
	}

	p.setStage(domain.StagePlot)
	if err := p.Plot(ctx); err != nil {
		return err
	}
	p.setStage(domain.StageDone)
	p.logger.Info("pipeline finished", "base_dir", p.store.Dir())
	return nil
}

func (p *Pipeline) download(ctx context.Context, runID string) error {
	p.setStage(domain.StageMainEvents)
	p.ready.Store(true)
	mainEvents, err := p.mainEvents.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch main events: %w", err)
	}

	p.setStage(domain.StagePrecursors)
	merged, err := p.precursors.Fetch(ctx, mainEvents, runID)
	if err != nil {
		return fmt.Errorf("fetch precursors: %w", err)
	}

	if p.publisher == nil {
		return nil
	}
	p.setStage(domain.StagePublish)
	if err := p.publisher.Publish(ctx, merged.Events); err != nil {
		return fmt.Errorf("publish precursors: %w", err)
	}
	p.metrics.EventsPublished.Add(float64(merged.Len()))
	p.logger.Info("precursors published", "events", merged.Len())
	return nil
}

// Plot reloads the merged precursor table and renders both charts.
func (p *Pipeline) Plot(_ context.Context) error {
	merged, err := p.store.Load(p.store.MergedPath())
	if err != nil {
		return fmt.Errorf("load merged precursors: %w", err)
	}

	historyPath := p.store.MagnitudeHistoryPlotPath()
	if err := p.renderer.MagnitudeHistory(merged.Events, historyPath); err != nil {
		return fmt.Errorf("plot magnitude history: %w", err)
	}
	p.logger.Info("plot saved", "path", historyPath, "events", merged.Len())

	curves := domain.MicroEventFrequency(merged.Events, domain.DefaultFrequencyOptions())
	if len(curves) == 0 {
		p.logger.Warn("no main event has enough micro events for a frequency curve")
	}
	frequencyPath := p.store.FrequencyPlotPath()
	if err := p.renderer.FrequencyCurves(curves, frequencyPath); err != nil {
		return fmt.Errorf("plot micro-event frequency: %w", err)
	}
	p.logger.Info("plot saved", "path", frequencyPath, "curves", len(curves), "main_events", curveIDs(curves))
	return nil
}

// curveIDs lists the main events that kept a frequency curve.
func curveIDs(curves []domain.FrequencyCurve) []int {
	ids := make([]int, len(curves))
	for i, c := range curves {
		ids[i] = c.MainEvent
	}
	return ids
}
