package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/sessionscrape/models"
)

// Retrier opens a URL in a page, retrying failed attempts after a fixed
// (non-exponential) backoff.
type Retrier struct {
	// Attempts is the total number of navigation attempts.
	Attempts int

	// Timeout bounds a single attempt.
	Timeout time.Duration

	// Backoff is the pause after every failed attempt except the last.
	Backoff time.Duration

	sleep sleepFunc
}

// NewRetrier creates a Retrier. Non-positive attempts are treated as one.
func NewRetrier(attempts int, timeout, backoff time.Duration) *Retrier {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrier{
		Attempts: attempts,
		Timeout:  timeout,
		Backoff:  backoff,
		sleep:    sleepCtx,
	}
}

// Navigate loads url in page. It returns the number of attempts made.
//
// No attempt follows a success. When every attempt fails the error is
// NAVIGATION_EXHAUSTED wrapping the last failure. When ctx ends first the
// error is a timeout or cancellation and no further attempts are made.
func (r *Retrier) Navigate(ctx context.Context, page Page, url string, ready models.Readiness) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		slog.Info("opening target page",
			"url", url,
			"attempt", attempt,
			"of", r.Attempts,
			"readiness", ready,
		)

		err := r.attempt(ctx, page, url, ready)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return attempt, categorizeError(ctx.Err(), models.ErrCodeNavigationExhausted, "navigation aborted")
		}

		slog.Warn("navigation failed",
			"url", url,
			"attempt", attempt,
			"error", err,
		)

		if attempt < r.Attempts {
			if err := r.sleep(ctx, r.Backoff); err != nil {
				return attempt, categorizeError(err, models.ErrCodeNavigationExhausted, "navigation aborted")
			}
		}
	}

	return r.Attempts, models.NewScrapeError(
		models.ErrCodeNavigationExhausted,
		fmt.Sprintf("failed to open page after %d attempts", r.Attempts),
		lastErr,
	)
}

// attempt performs one navigation under its own deadline.
func (r *Retrier) attempt(ctx context.Context, page Page, url string, ready models.Readiness) error {
	attemptCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	return page.Navigate(attemptCtx, url, ready)
}
