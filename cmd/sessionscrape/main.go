package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/sessionscrape/api"
	"github.com/use-agent/sessionscrape/api/handler"
	"github.com/use-agent/sessionscrape/config"
	"github.com/use-agent/sessionscrape/pool"
	"github.com/use-agent/sessionscrape/scraper"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	config.InitLogger(cfg.Log, os.Stdout)
	slog.Info("sessionscrape starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxRuns", cfg.Pool.MaxRuns,
		"readiness", cfg.Session.Readiness,
		"settleMode", cfg.Session.SettleMode,
	)

	// ── 3. Load extraction rules ────────────────────────────────────
	rules := scraper.DefaultRules()
	if cfg.Session.RulesFile != "" {
		var err error
		rules, err = scraper.LoadRules(cfg.Session.RulesFile)
		if err != nil {
			slog.Error("failed to load extraction rules", "file", cfg.Session.RulesFile, "error", err)
			os.Exit(1)
		}
		slog.Info("extraction rules loaded", "file", cfg.Session.RulesFile)
	}

	// ── 4. Launch browser ───────────────────────────────────────────
	browser, err := scraper.LaunchRod(cfg.Browser)
	if err != nil {
		slog.Error("failed to launch browser", "error", err)
		os.Exit(1)
	}
	defer browser.Close()

	sc := scraper.New(browser, cfg.Session, rules)
	sc.OnTransition = func(url string, from, to scraper.State) {
		if to == scraper.StateFailed {
			slog.Warn("scrape run failed", "url", url, "stage", from.String())
		}
	}

	// ── 5. Admission control and batch store ────────────────────────
	ex := &handler.Executor{
		Runner:     sc,
		Limiter:    pool.New(cfg.Pool.MaxRuns),
		RunTimeout: cfg.Session.RunTimeout,
	}

	// Background janitors stop with this context.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	store := handler.NewBatchStore(time.Hour)
	go store.Janitor(bgCtx, 5*time.Minute)

	// ── 6. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(bgCtx, ex, store, cfg, startTime)

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Runs can take minutes; give in-flight requests up to 30 seconds.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// browser.Close() runs via defer and kills Chrome.
	slog.Info("sessionscrape stopped")
}
