package pipeline

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Pacer spaces successive requests at least interval apart.
type Pacer struct {
	clock    clockwork.Clock
	interval time.Duration
	last     time.Time
	started  bool
}

// NewPacer creates a Pacer. A zero interval disables pacing.
func NewPacer(clock clockwork.Clock, interval time.Duration) *Pacer {
	return &Pacer{clock: clock, interval: interval}
}

// Wait blocks until interval has passed since the previous Wait returned,
// then marks the current time as the latest request. The first call never
// blocks.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.started {
		if remaining := p.interval - p.clock.Since(p.last); remaining > 0 {
			if err := sleepWithContext(ctx, p.clock, remaining); err != nil {
				return err
			}
		}
	}
	p.last = p.clock.Now()
	p.started = true
	return nil
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
