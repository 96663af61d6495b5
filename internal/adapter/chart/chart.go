// Package chart renders the magnitude history and micro-event frequency
// charts as PNG images.
package chart

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/couchcryptid/quake-trends/internal/domain"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Axis bounds of the frequency chart.
const (
	MaxDaysBefore = 366
	MaxFrequency  = 25
)

// Renderer draws charts with gonum/plot. The output format follows the file
// extension of the target path.
type Renderer struct {
	Width  vg.Length
	Height vg.Length
	logger *slog.Logger
}

// NewRenderer creates a Renderer producing 8x6 inch images.
func NewRenderer(logger *slog.Logger) *Renderer {
	return &Renderer{
		Width:  8 * vg.Inch,
		Height: 6 * vg.Inch,
		logger: logger,
	}
}

// MagnitudeHistory scatters event time against magnitude. Events without a
// magnitude are left out.
func (r *Renderer) MagnitudeHistory(events []domain.Event, path string) error {
	p := plot.New()
	p.X.Label.Text = "Date of event"
	p.Y.Label.Text = "Earthquake Magnitude"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006"}
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, 0, len(events))
	for _, ev := range events {
		if math.IsNaN(ev.Magnitude) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(ev.Time.Unix()), Y: ev.Magnitude})
	}
	if skipped := len(events) - len(pts); skipped > 0 {
		r.logger.Debug("events without magnitude not plotted", "count", skipped)
	}

	if len(pts) > 0 {
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("build scatter: %w", err)
		}
		scatter.GlyphStyle.Radius = vg.Points(1)
		scatter.GlyphStyle.Color = plotutil.Color(0)
		p.Add(scatter)
	}

	return r.save(p, path)
}

// FrequencyCurves draws one line per curve over the year before the main
// event. Points outside [0, MaxDaysBefore] days or with a non-finite
// frequency are dropped; frequencies above MaxFrequency are clamped.
func (r *Renderer) FrequencyCurves(curves []domain.FrequencyCurve, path string) error {
	p := plot.New()
	p.X.Label.Text = "Time (days)"
	p.Y.Label.Text = "Micro-event frequency (1/days)"
	p.Add(plotter.NewGrid())

	for i, curve := range curves {
		pts := visiblePoints(curve.Points)
		if len(pts) == 0 {
			r.logger.Debug("frequency curve has no visible points", "main_event", curve.MainEvent)
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("build line for main event %d: %w", curve.MainEvent, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("main event %d", curve.MainEvent), line)
	}

	p.X.Min, p.X.Max = 0, MaxDaysBefore
	p.Y.Min, p.Y.Max = 0, MaxFrequency
	p.Legend.Top = true

	return r.save(p, path)
}

func visiblePoints(points []domain.FrequencyPoint) plotter.XYs {
	pts := make(plotter.XYs, 0, len(points))
	for _, pt := range points {
		if math.IsNaN(pt.DaysBefore) || pt.DaysBefore < 0 || pt.DaysBefore > MaxDaysBefore {
			continue
		}
		if math.IsNaN(pt.Frequency) || math.IsInf(pt.Frequency, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: pt.DaysBefore, Y: math.Min(pt.Frequency, MaxFrequency)})
	}
	return pts
}

func (r *Renderer) save(p *plot.Plot, path string) error {
	if err := p.Save(r.Width, r.Height, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
