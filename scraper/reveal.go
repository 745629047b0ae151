package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/sessionscrape/models"
)

// SettleMode decides how long the revealer waits after navigation and after
// each scroll step.
type SettleMode string

const (
	// SettleFixed always waits the full delay.
	SettleFixed SettleMode = "fixed"

	// SettleAdaptive stops waiting once the list-item count has been stable
	// for the quiet window. The fixed delay stays the upper bound.
	SettleAdaptive SettleMode = "adaptive"
)

// Revealer materializes lazily-loaded list content by scrolling.
//
// It always performs exactly Steps wheel events; it never inspects the page
// to decide whether the end of the list was reached.
type Revealer struct {
	IdleWait    time.Duration
	Steps       int
	Delta       float64
	SettleDelay time.Duration

	Mode         SettleMode
	PollInterval time.Duration
	QuietWindow  time.Duration

	sleep sleepFunc
	now   func() time.Time
}

// NewRevealer creates a Revealer. Unknown modes fall back to SettleFixed.
func NewRevealer(idle time.Duration, steps int, delta float64, settle time.Duration, mode SettleMode) *Revealer {
	if mode != SettleAdaptive {
		mode = SettleFixed
	}
	return &Revealer{
		IdleWait:     idle,
		Steps:        steps,
		Delta:        delta,
		SettleDelay:  settle,
		Mode:         mode,
		PollInterval: 250 * time.Millisecond,
		QuietWindow:  1500 * time.Millisecond,
		sleep:        sleepCtx,
		now:          time.Now,
	}
}

// Reveal runs the idle wait and then the scroll loop. itemSelector is what
// adaptive settling counts; it is ignored in fixed mode.
func (r *Revealer) Reveal(ctx context.Context, page Page, itemSelector string) error {
	if err := r.settle(ctx, page, itemSelector, r.IdleWait); err != nil {
		return categorizeError(err, models.ErrCodeBrowserCrash, "initial render wait failed")
	}

	for i := 0; i < r.Steps; i++ {
		if err := page.Wheel(ctx, 0, r.Delta); err != nil {
			return categorizeError(err, models.ErrCodeBrowserCrash, "scroll step failed")
		}
		if err := r.settle(ctx, page, itemSelector, r.SettleDelay); err != nil {
			return categorizeError(err, models.ErrCodeBrowserCrash, "scroll settle failed")
		}
		slog.Debug("scroll step done", "step", i+1, "of", r.Steps)
	}
	return nil
}

// settle waits up to bound. In adaptive mode it returns early once at least
// one item is present and the count has not changed for QuietWindow. A
// failing count falls back to waiting out the bound.
func (r *Revealer) settle(ctx context.Context, page Page, itemSelector string, bound time.Duration) error {
	if r.Mode != SettleAdaptive || itemSelector == "" || r.PollInterval <= 0 {
		return r.sleep(ctx, bound)
	}

	start := r.now()
	deadline := start.Add(bound)
	last := -1
	stableSince := start

	for {
		now := r.now()
		remaining := deadline.Sub(now)
		if remaining <= 0 {
			return nil
		}

		n, err := page.CountElements(ctx, itemSelector)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Debug("item count failed, waiting out settle bound", "error", err)
			return r.sleep(ctx, remaining)
		}

		if n != last {
			last = n
			stableSince = now
		} else if n > 0 && now.Sub(stableSince) >= r.QuietWindow {
			return nil
		}

		if err := r.sleep(ctx, min(r.PollInterval, remaining)); err != nil {
			return err
		}
	}
}
