package scraper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/sessionscrape/models"
)

// fakePage scripts navigation outcomes and records every interaction.
type fakePage struct {
	mu sync.Mutex

	// navErrs[i] is returned by attempt i+1; attempts past the end succeed.
	navErrs   []error
	navCalls  int
	navURLs   []string
	navReady  []models.Readiness
	deadlines []time.Duration

	wheels   []float64
	wheelErr error

	counts   []int // successive CountElements results; the last one repeats
	countErr error
	countN   int

	html    string
	htmlErr error
}

func (p *fakePage) Navigate(ctx context.Context, url string, ready models.Readiness) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navCalls++
	p.navURLs = append(p.navURLs, url)
	p.navReady = append(p.navReady, ready)
	if dl, ok := ctx.Deadline(); ok {
		p.deadlines = append(p.deadlines, time.Until(dl))
	}
	if p.navCalls <= len(p.navErrs) {
		return p.navErrs[p.navCalls-1]
	}
	return nil
}

func (p *fakePage) Wheel(_ context.Context, _, dy float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.wheelErr != nil {
		return p.wheelErr
	}
	p.wheels = append(p.wheels, dy)
	return nil
}

func (p *fakePage) CountElements(_ context.Context, _ string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.countErr != nil {
		return 0, p.countErr
	}
	if len(p.counts) == 0 {
		return 0, nil
	}
	idx := min(p.countN, len(p.counts)-1)
	p.countN++
	return p.counts[idx], nil
}

func (p *fakePage) HTML(_ context.Context) (string, error) {
	return p.html, p.htmlErr
}

// fakeContext records cookies and whether it was released.
type fakeContext struct {
	page       *fakePage
	cookies    []*proto.NetworkCookieParam
	cookieErr  error
	pageErr    error
	closed     int
	headers    map[string]string
	closeError error
}

func (c *fakeContext) SetCookies(_ context.Context, cookies []*proto.NetworkCookieParam) error {
	if c.cookieErr != nil {
		return c.cookieErr
	}
	c.cookies = cookies
	return nil
}

func (c *fakeContext) NewPage(_ context.Context) (Page, error) {
	if c.pageErr != nil {
		return nil, c.pageErr
	}
	return c.page, nil
}

func (c *fakeContext) Close() error {
	c.closed++
	return c.closeError
}

type fakeBrowser struct {
	ctx      *fakeContext
	err      error
	contexts int
}

func (b *fakeBrowser) NewContext(_ context.Context, opts ContextOptions) (BrowserContext, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.contexts++
	b.ctx.headers = opts.Headers
	return b.ctx, nil
}

// recordingSleep records requested durations without sleeping.
type recordingSleep struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
	if s.err != nil {
		return s.err
	}
	return ctx.Err()
}

// fakeClock advances only when sleep is called.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

var errNav = errors.New("net::ERR_CONNECTION_RESET")

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }
