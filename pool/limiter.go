// Package pool admits scrape runs into the shared browser. Every admitted
// run owns one browser context until it finishes, so the limiter bounds how
// many contexts exist at once.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/sessionscrape/models"
	"golang.org/x/sync/semaphore"
)

// Limiter bounds the number of concurrent runs. Callers beyond the bound
// wait in FIFO order until a slot frees up or their context ends.
type Limiter struct {
	max int
	sem *semaphore.Weighted

	active    atomic.Int32
	waiting   atomic.Int32
	completed atomic.Int64
	failed    atomic.Int64

	health *Health
}

// New creates a Limiter admitting at most maxRuns runs. Values below one are
// treated as one.
func New(maxRuns int) *Limiter {
	if maxRuns < 1 {
		maxRuns = 1
	}
	return &Limiter{
		max:    maxRuns,
		sem:    semaphore.NewWeighted(int64(maxRuns)),
		health: &Health{},
	}
}

// Do waits for a slot and runs fn in it. It returns how long the call was
// queued. When ctx ends before a slot frees up, fn is not called and the
// error is SCRAPE_TIMEOUT or SCRAPE_CANCELED.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) (time.Duration, error) {
	start := time.Now()

	l.waiting.Add(1)
	err := l.sem.Acquire(ctx, 1)
	l.waiting.Add(-1)
	queued := time.Since(start)
	if err != nil {
		slog.Warn("run not admitted", "queued", queued, "error", err)
		return queued, admissionError(err)
	}
	defer l.sem.Release(1)

	l.active.Add(1)
	defer l.active.Add(-1)

	err = fn(ctx)
	if err != nil {
		l.failed.Add(1)
	} else {
		l.completed.Add(1)
	}
	l.health.Record(err)
	return queued, err
}

// Stats returns a snapshot of the limiter counters.
func (l *Limiter) Stats() models.PoolStats {
	return models.PoolStats{
		MaxRuns:    l.max,
		ActiveRuns: int(l.active.Load()),
		Waiting:    int(l.waiting.Load()),
		Completed:  l.completed.Load(),
		Failed:     l.failed.Load(),
	}
}

// Health returns the browser health tracker fed by every finished run.
func (l *Limiter) Health() *Health {
	return l.health
}

func admissionError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewScrapeError(models.ErrCodeTimeout, "timed out waiting for a free browser slot", err)
	}
	return models.NewScrapeError(models.ErrCodeCanceled, "run canceled while queued", err)
}

// Health scores the shared browser from run outcomes.
//
// Scoring rules:
//   - success: score -= 0.5 (min 0)
//   - browser crash: score += 1.0
//
// Other failures (bad input, navigation, extraction) say nothing about the
// browser process and leave the score alone. The browser counts as degraded
// once the score reaches 3.
type Health struct {
	mu    sync.Mutex
	score float64
	last  time.Time
}

// Record applies the outcome of one run.
func (h *Health) Record(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case err == nil:
		h.score = math.Max(0, h.score-0.5)
	case models.CodeOf(err) == models.ErrCodeBrowserCrash:
		h.score += 1.0
		h.last = time.Now()
		if h.score >= degradedScore {
			slog.Warn("browser looks unhealthy", "score", h.score)
		}
	}
}

// Degraded reports whether recent runs point at a broken browser.
func (h *Health) Degraded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.score >= degradedScore
}

// Score returns the current error score.
func (h *Health) Score() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.score
}

const degradedScore = 3.0
