package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/sessionscrape/api/handler"
	"github.com/use-agent/sessionscrape/config"
	"github.com/use-agent/sessionscrape/models"
	"github.com/use-agent/sessionscrape/pool"
	"github.com/use-agent/sessionscrape/scraper"
	"github.com/use-agent/sessionscrape/session"
	"github.com/use-agent/sessionscrape/webhook"
)

// runnerProvider creates the scraper for one CLI invocation. Tests swap in a
// fake so no browser is launched.
type runnerProvider interface {
	Create(cfg *config.Config) (handler.Runner, func(), error)
}

// rodProvider launches a real browser.
type rodProvider struct{}

func (rodProvider) Create(cfg *config.Config) (handler.Runner, func(), error) {
	rules := scraper.DefaultRules()
	if cfg.Session.RulesFile != "" {
		var err error
		if rules, err = scraper.LoadRules(cfg.Session.RulesFile); err != nil {
			return nil, nil, err
		}
	}

	browser, err := scraper.LaunchRod(cfg.Browser)
	if err != nil {
		return nil, nil, fmt.Errorf("launch browser: %w", err)
	}
	cleanup := func() {
		if err := browser.Close(); err != nil {
			slog.Warn("failed to close browser", "error", err)
		}
	}
	return scraper.New(browser, cfg.Session, rules), cleanup, nil
}

type runOptions struct {
	input         string
	cookies       string
	kind          string
	readiness     string
	output        string
	webhook       string
	webhookSecret string
	timeout       time.Duration
}

func newRunCmd(provider runnerProvider) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run --input <input.json> [--cookies <cookies.json>] [--output <results.json>]",
		Short: "Runs one scrape from an input file and writes the dataset.",
		Long: `Runs one scrape. The input file holds a scrape request:

  {"targetUrl": "...", "cookies": [...], "kind": "posts"}

"searchUrl" and "target_url" are accepted in place of "targetUrl", and cookies
may be a JSON string containing the array. --cookies replaces the cookies of
the input file with the content of a cookie export file, which is checked
before the browser starts.

The exit status is 1 when the run fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if opts.timeout > 0 {
				cfg.Session.RunTimeout = opts.timeout
			}

			req, err := loadInput(opts)
			if err != nil {
				return err
			}

			runner, cleanup, err := provider.Create(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			return runScrape(cmd.Context(), runner, cfg, req, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Input file with the scrape request (required).")
	cmd.Flags().StringVar(&opts.cookies, "cookies", "", "Cookie export file; overrides the cookies of the input.")
	cmd.Flags().StringVar(&opts.kind, "kind", "", `Extraction variant: "posts" or "profiles".`)
	cmd.Flags().StringVar(&opts.readiness, "readiness", "", `Navigation readiness: "domcontentloaded" or "networkidle".`)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the dataset here instead of stdout.")
	cmd.Flags().StringVar(&opts.webhook, "webhook", "", "Push the dataset to this URL when done.")
	cmd.Flags().StringVar(&opts.webhookSecret, "webhook-secret", "", "Sign the webhook body with this secret.")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Bound the whole run (default from SESSIONSCRAPE_RUN_TIMEOUT).")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// loadInput reads the request file and applies flag overrides.
func loadInput(opts runOptions) (*models.ScrapeRequest, error) {
	data, err := os.ReadFile(opts.input)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	var req models.ScrapeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	if opts.cookies != "" {
		cookies, err := session.LoadFile(opts.cookies)
		if err != nil {
			return nil, fmt.Errorf("load cookies: %w", err)
		}
		if req.Cookies, err = json.Marshal(cookies); err != nil {
			return nil, fmt.Errorf("encode cookies: %w", err)
		}
	}
	if opts.kind != "" {
		req.Kind = models.Kind(opts.kind)
	}
	if opts.readiness != "" {
		req.Readiness = models.Readiness(opts.readiness)
	}
	return &req, nil
}

// runScrape executes req, writes the response as the dataset and pushes it
// to the webhook. A failed run still writes its error response before the
// error is returned.
func runScrape(ctx context.Context, runner handler.Runner, cfg *config.Config, req *models.ScrapeRequest, opts runOptions, stdout io.Writer) error {
	ex := &handler.Executor{
		Runner:     runner,
		Limiter:    pool.New(1),
		RunTimeout: cfg.Session.RunTimeout,
	}
	resp, runErr := ex.Execute(ctx, req)

	if err := writeDataset(resp, opts.output, stdout); err != nil {
		return errors.Join(runErr, err)
	}

	if opts.webhook != "" {
		event := &webhook.Event{
			Type:      "run.completed",
			JobID:     req.TargetURL,
			Timestamp: time.Now().Unix(),
			Data:      resp,
		}
		if runErr != nil {
			event.Type = "run.failed"
		}
		if err := webhook.DeliverWithRetry(ctx, opts.webhook, opts.webhookSecret, event); err != nil {
			return errors.Join(runErr, fmt.Errorf("push dataset: %w", err))
		}
	}

	if runErr != nil {
		return runErr
	}
	slog.Info("dataset written", "records", resp.Count, "output", outputName(opts.output))
	return nil
}

func writeDataset(resp *models.ScrapeResponse, path string, stdout io.Writer) error {
	out := stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func outputName(path string) string {
	if path == "" {
		return "stdout"
	}
	return path
}
