package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Session   SessionConfig
	Pool      PoolConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all browser traffic.
	Proxy string

	// Stealth injects anti-automation-detection JS into every page.
	Stealth bool // default: true

	// ViewportWidth and ViewportHeight size every page of a run.
	ViewportWidth  int // default: 1280
	ViewportHeight int // default: 800

	// BlockedResourceTypes lists resource types to block.
	// default: ["Media", "Font"]
	BlockedResourceTypes []string
}

// SessionConfig controls one scrape run: navigation retry, content reveal
// and extraction rules.
type SessionConfig struct {
	// NavAttempts is the total number of navigation attempts.
	NavAttempts int // default: 3

	// NavTimeout bounds each navigation attempt.
	NavTimeout time.Duration // default: 60s

	// NavBackoff is the fixed pause between failed attempts.
	NavBackoff time.Duration // default: 5s

	// Readiness is the navigation readiness condition:
	// "domcontentloaded" or "networkidle"; default: "domcontentloaded".
	Readiness string

	// IdleWait is the upper bound of the wait after navigation.
	IdleWait time.Duration // default: 8s

	// ScrollSteps is the number of wheel events issued, always all of them.
	ScrollSteps int // default: 5

	// ScrollDelta is the downward wheel distance per step.
	ScrollDelta float64 // default: 1500

	// SettleDelay is the upper bound of the wait after each scroll step.
	SettleDelay time.Duration // default: 3s

	// SettleMode is "adaptive" (stop waiting once the item count is stable)
	// or "fixed" (always wait the full delay); default: "adaptive".
	SettleMode string

	// PollInterval is how often adaptive settling samples the item count.
	PollInterval time.Duration // default: 250ms

	// QuietWindow is how long the item count must stay unchanged.
	QuietWindow time.Duration // default: 1500ms

	// RunTimeout bounds a whole run, including queueing for a slot.
	RunTimeout time.Duration // default: 5m

	// RulesFile optionally points at a JSON extraction rule table.
	RulesFile string
}

// PoolConfig controls admission of concurrent runs.
type PoolConfig struct {
	// MaxRuns is the maximum number of runs that own a browser context at once.
	MaxRuns int // default: 4
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SESSIONSCRAPE_HOST", "0.0.0.0"),
			Port: envIntOr("SESSIONSCRAPE_PORT", 3000),
			Mode: envOr("SESSIONSCRAPE_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("SESSIONSCRAPE_HEADLESS", true),
			NoSandbox:      envBoolOr("SESSIONSCRAPE_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("SESSIONSCRAPE_BROWSER_BIN"),
			Proxy:          os.Getenv("SESSIONSCRAPE_PROXY"),
			Stealth:        envBoolOr("SESSIONSCRAPE_STEALTH", true),
			ViewportWidth:  envIntOr("SESSIONSCRAPE_VIEWPORT_WIDTH", 1280),
			ViewportHeight: envIntOr("SESSIONSCRAPE_VIEWPORT_HEIGHT", 800),
			BlockedResourceTypes: envSliceOr("SESSIONSCRAPE_BLOCKED_RESOURCES", []string{
				"Media", "Font",
			}),
		},
		Session: SessionConfig{
			NavAttempts:  envIntOr("SESSIONSCRAPE_NAV_ATTEMPTS", 3),
			NavTimeout:   envDurationOr("SESSIONSCRAPE_NAV_TIMEOUT", 60*time.Second),
			NavBackoff:   envDurationOr("SESSIONSCRAPE_NAV_BACKOFF", 5*time.Second),
			Readiness:    envOr("SESSIONSCRAPE_READINESS", "domcontentloaded"),
			IdleWait:     envDurationOr("SESSIONSCRAPE_IDLE_WAIT", 8*time.Second),
			ScrollSteps:  envIntOr("SESSIONSCRAPE_SCROLL_STEPS", 5),
			ScrollDelta:  envFloatOr("SESSIONSCRAPE_SCROLL_DELTA", 1500),
			SettleDelay:  envDurationOr("SESSIONSCRAPE_SETTLE_DELAY", 3*time.Second),
			SettleMode:   envOr("SESSIONSCRAPE_SETTLE_MODE", "adaptive"),
			PollInterval: envDurationOr("SESSIONSCRAPE_POLL_INTERVAL", 250*time.Millisecond),
			QuietWindow:  envDurationOr("SESSIONSCRAPE_QUIET_WINDOW", 1500*time.Millisecond),
			RunTimeout:   envDurationOr("SESSIONSCRAPE_RUN_TIMEOUT", 5*time.Minute),
			RulesFile:    os.Getenv("SESSIONSCRAPE_RULES_FILE"),
		},
		Pool: PoolConfig{
			MaxRuns: envIntOr("SESSIONSCRAPE_MAX_RUNS", 4),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SESSIONSCRAPE_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SESSIONSCRAPE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SESSIONSCRAPE_RATE_RPS", 1.0),
			Burst:             envIntOr("SESSIONSCRAPE_RATE_BURST", 5),
		},
		Log: LogConfig{
			Level:  envOr("SESSIONSCRAPE_LOG_LEVEL", "info"),
			Format: envOr("SESSIONSCRAPE_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
