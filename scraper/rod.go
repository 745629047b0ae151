package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/sessionscrape/config"
	"github.com/use-agent/sessionscrape/models"
	"github.com/ysmood/gson"
)

// RodBrowser is a launched Chromium process. Each run gets its own incognito
// context, so cookies never leak between concurrent runs.
type RodBrowser struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
}

// LaunchRod starts a browser process and connects to it.
func LaunchRod(cfg config.BrowserConfig) (*RodBrowser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}
	return &RodBrowser{browser: browser, cfg: cfg}, nil
}

// NewContext creates an incognito browser context.
func (b *RodBrowser) NewContext(ctx context.Context, opts ContextOptions) (BrowserContext, error) {
	incognito, err := b.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, err
	}
	return &rodContext{
		// Detached from ctx: the context must stay disposable after the
		// run's deadline has passed.
		browser: incognito.Context(context.Background()),
		cfg:     b.cfg,
		headers: opts.Headers,
	}, nil
}

// Close kills the browser process.
func (b *RodBrowser) Close() error {
	slog.Info("closing browser")
	return b.browser.Close()
}

type rodContext struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
	headers map[string]string

	mu      sync.Mutex
	pages   []*rod.Page
	routers []*rod.HijackRouter
}

func (c *rodContext) SetCookies(ctx context.Context, cookies []*proto.NetworkCookieParam) error {
	if len(cookies) == 0 {
		return nil
	}
	return c.browser.Context(ctx).SetCookies(cookies)
}

// NewPage opens a tab with the run's viewport, stealth script, extra
// headers and resource blocking installed before any navigation.
func (c *rodContext) NewPage(ctx context.Context) (Page, error) {
	page, err := c.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.pages = append(c.pages, page)
	c.mu.Unlock()

	if c.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             c.cfg.ViewportWidth,
		Height:            c.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, err
	}

	if len(c.headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(c.headers)}).Call(page); err != nil {
			slog.Warn("failed to set extra headers", "error", err)
		}
	}

	if router := setupHijack(page, c.cfg.BlockedResourceTypes); router != nil {
		c.mu.Lock()
		c.routers = append(c.routers, router)
		c.mu.Unlock()
	}

	return &rodPage{
		page:    page,
		centerX: float64(c.cfg.ViewportWidth) / 2,
		centerY: float64(c.cfg.ViewportHeight) / 2,
	}, nil
}

// closeTimeout bounds the cleanup calls of a context.
const closeTimeout = 10 * time.Second

// Close stops hijack routers, closes pages and disposes the context.
func (c *rodContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var errs []error
	for _, r := range c.routers {
		if err := r.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range c.pages {
		if err := p.Context(ctx).Close(); err != nil {
			slog.Debug("page close failed", "error", err)
		}
	}
	if err := c.browser.Context(ctx).Close(); err != nil {
		errs = append(errs, err)
	}
	c.routers, c.pages = nil, nil
	return errors.Join(errs...)
}

type rodPage struct {
	page    *rod.Page
	centerX float64
	centerY float64
}

// lifecycleEvents maps readiness conditions to CDP lifecycle events.
var lifecycleEvents = map[models.Readiness]proto.PageLifecycleEventName{
	models.ReadinessDOMContentLoaded: proto.PageLifecycleEventNameDOMContentLoaded,
	models.ReadinessNetworkIdle:      proto.PageLifecycleEventNameNetworkIdle,
}

// Navigate registers the lifecycle waiter BEFORE navigating so the event
// cannot fire unobserved.
func (r *rodPage) Navigate(ctx context.Context, url string, ready models.Readiness) error {
	p := r.page.Context(ctx)

	event, ok := lifecycleEvents[ready]
	if !ok {
		event = proto.PageLifecycleEventNameDOMContentLoaded
	}
	wait := p.WaitNavigation(event)

	if err := p.Navigate(url); err != nil {
		return err
	}
	wait()
	return ctx.Err()
}

// Wheel dispatches a trusted wheel event at the viewport center.
func (r *rodPage) Wheel(ctx context.Context, dx, dy float64) error {
	return proto.InputDispatchMouseEvent{
		Type:   proto.InputDispatchMouseEventTypeMouseWheel,
		X:      r.centerX,
		Y:      r.centerY,
		DeltaX: dx,
		DeltaY: dy,
	}.Call(r.page.Context(ctx))
}

func (r *rodPage) CountElements(ctx context.Context, selector string) (int, error) {
	res, err := r.page.Context(ctx).Eval(`(sel) => document.querySelectorAll(sel).length`, selector)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (r *rodPage) HTML(ctx context.Context) (string, error) {
	return r.page.Context(ctx).HTML()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
