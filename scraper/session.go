package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/sessionscrape/config"
	"github.com/use-agent/sessionscrape/models"
	"github.com/use-agent/sessionscrape/session"
)

// State is a stage of one scrape run. Runs move strictly forward; Failed is
// reachable from any stage.
type State int

const (
	StateIdle State = iota
	StateSessionRestored
	StateNavigated
	StateRevealed
	StateExtracted
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSessionRestored:
		return "session_restored"
	case StateNavigated:
		return "navigated"
	case StateRevealed:
		return "revealed"
	case StateExtracted:
		return "extracted"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of a successful run.
type Result struct {
	TargetURL string
	Kind      models.Kind

	// Records is []models.ScrapedPost or []models.ScrapedProfile.
	Records any
	Count   int

	// Attempts is the number of navigation attempts made.
	Attempts int

	Timing models.TimingInfo
}

// Scraper runs the session pipeline. It is safe for concurrent use as long
// as the Browser is; every run owns its own browser context.
type Scraper struct {
	browser   Browser
	retrier   *Retrier
	revealer  *Revealer
	extractor *Extractor
	rules     *Rules
	readiness models.Readiness

	// OnTransition, when set, observes every state change of every run.
	OnTransition func(targetURL string, from, to State)
}

// New creates a Scraper from the session configuration. A nil rules table
// means DefaultRules.
func New(browser Browser, cfg config.SessionConfig, rules *Rules) *Scraper {
	if rules == nil {
		rules = DefaultRules()
	}
	revealer := NewRevealer(cfg.IdleWait, cfg.ScrollSteps, cfg.ScrollDelta, cfg.SettleDelay, SettleMode(cfg.SettleMode))
	if cfg.PollInterval > 0 {
		revealer.PollInterval = cfg.PollInterval
	}
	if cfg.QuietWindow > 0 {
		revealer.QuietWindow = cfg.QuietWindow
	}

	readiness := models.Readiness(cfg.Readiness)
	if !readiness.Valid() {
		readiness = models.ReadinessDOMContentLoaded
	}

	return &Scraper{
		browser:   browser,
		retrier:   NewRetrier(cfg.NavAttempts, cfg.NavTimeout, cfg.NavBackoff),
		revealer:  revealer,
		extractor: NewExtractor(rules),
		rules:     rules,
		readiness: readiness,
	}
}

// run carries the state of one scrape.
type run struct {
	s     *Scraper
	url   string
	state State
}

func (r *run) transition(to State) {
	from := r.state
	r.state = to
	slog.Debug("scrape state", "url", r.url, "from", from.String(), "to", to.String())
	if r.s.OnTransition != nil {
		r.s.OnTransition(r.url, from, to)
	}
}

// Run restores the session, opens the target, reveals lazy content and
// extracts records. It returns either every record that passed the
// variant's filter or an error, never a partial result. The browser context
// is released on every exit path.
func (s *Scraper) Run(ctx context.Context, req *models.ScrapeRequest) (res *Result, err error) {
	req.Defaults()
	r := &run{s: s, url: req.TargetURL, state: StateIdle}

	// ── 1. Validate input ───────────────────────────────────────────
	if req.TargetURL == "" {
		r.transition(StateFailed)
		return nil, models.NewScrapeError(models.ErrCodeInputShape, `"targetUrl" is required`, nil)
	}
	if !req.Kind.Valid() {
		r.transition(StateFailed)
		return nil, models.NewScrapeError(models.ErrCodeInputShape, `"kind" must be "posts" or "profiles"`, nil)
	}
	readiness := s.readiness
	if req.Readiness != "" {
		if !req.Readiness.Valid() {
			r.transition(StateFailed)
			return nil, models.NewScrapeError(models.ErrCodeInputShape, `"readiness" must be "domcontentloaded" or "networkidle"`, nil)
		}
		readiness = req.Readiness
	}

	cookies, err := session.Parse(req.Cookies)
	if err != nil {
		r.transition(StateFailed)
		return nil, err
	}

	// ── 2. Restore session in a fresh context ───────────────────────
	bctx, err := s.browser.NewContext(ctx, ContextOptions{Headers: req.Headers})
	if err != nil {
		r.transition(StateFailed)
		return nil, categorizeError(err, models.ErrCodeBrowserCrash, "failed to create browser context")
	}

	// ── 3. DEFER: release the context whatever happens ──────────────
	defer func() {
		if closeErr := bctx.Close(); closeErr != nil {
			slog.Warn("failed to release browser context", "url", r.url, "error", closeErr)
		}
		if err != nil {
			res = nil
			r.transition(StateFailed)
			return
		}
		r.transition(StateClosed)
	}()

	if err = bctx.SetCookies(ctx, session.ToParams(cookies)); err != nil {
		return nil, categorizeError(err, models.ErrCodeSessionRestore, "browser rejected session cookies")
	}
	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, categorizeError(err, models.ErrCodeBrowserCrash, "failed to open page")
	}
	r.transition(StateSessionRestored)

	result := &Result{TargetURL: req.TargetURL, Kind: req.Kind}

	// ── 4. Navigate ─────────────────────────────────────────────────
	navStart := time.Now()
	result.Attempts, err = s.retrier.Navigate(ctx, page, req.TargetURL, readiness)
	result.Timing.NavigationMs = time.Since(navStart).Milliseconds()
	if err != nil {
		return nil, err
	}
	r.transition(StateNavigated)

	// ── 5. Reveal lazy content ──────────────────────────────────────
	revealStart := time.Now()
	err = s.revealer.Reveal(ctx, page, s.rules.ItemSelector(req.Kind == models.KindProfiles))
	result.Timing.RevealMs = time.Since(revealStart).Milliseconds()
	if err != nil {
		return nil, err
	}
	r.transition(StateRevealed)

	// ── 6. Extract ──────────────────────────────────────────────────
	extractStart := time.Now()
	result.Records, result.Count, err = s.extractor.Extract(ctx, page, req.Kind)
	result.Timing.ExtractionMs = time.Since(extractStart).Milliseconds()
	if err != nil {
		return nil, err
	}
	r.transition(StateExtracted)

	slog.Info("scrape finished",
		"url", req.TargetURL,
		"kind", req.Kind,
		"records", result.Count,
		"attempts", result.Attempts,
	)
	return result, nil
}
