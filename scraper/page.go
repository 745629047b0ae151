package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/sessionscrape/models"
)

// Page is the part of a browser tab the pipeline drives. Every call is bound
// to ctx so a caller can abort a stuck run at any suspension point.
type Page interface {
	// Navigate loads url and returns once the readiness condition is met.
	Navigate(ctx context.Context, url string, ready models.Readiness) error

	// Wheel dispatches one mouse-wheel event.
	Wheel(ctx context.Context, dx, dy float64) error

	// CountElements returns how many elements currently match selector.
	CountElements(ctx context.Context, selector string) (int, error)

	// HTML returns a snapshot of the rendered document.
	HTML(ctx context.Context) (string, error)
}

// ContextOptions configures a fresh browser context.
type ContextOptions struct {
	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string
}

// BrowserContext is an isolated cookie jar owned by exactly one run.
type BrowserContext interface {
	SetCookies(ctx context.Context, cookies []*proto.NetworkCookieParam) error
	NewPage(ctx context.Context) (Page, error)

	// Close releases every page of the context and the context itself.
	Close() error
}

// Browser hands out isolated contexts. Implementations must be safe for
// concurrent use.
type Browser interface {
	NewContext(ctx context.Context, opts ContextOptions) (BrowserContext, error)
}

// sleepFunc suspends for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

// sleepCtx is the default sleepFunc.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// categorizeError wraps raw errors into typed ScrapeErrors so the adapters
// can map them to status codes. Context errors win over the supplied code.
func categorizeError(err error, code, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeCanceled, "run canceled", err)
	default:
		return models.NewScrapeError(code, msg, err)
	}
}
