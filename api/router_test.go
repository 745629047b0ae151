package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/sessionscrape/api/handler"
	"github.com/use-agent/sessionscrape/config"
	"github.com/use-agent/sessionscrape/models"
	"github.com/use-agent/sessionscrape/pool"
	"github.com/use-agent/sessionscrape/scraper"
)

type okRunner struct{}

func (okRunner) Run(_ context.Context, req *models.ScrapeRequest) (*scraper.Result, error) {
	return &scraper.Result{TargetURL: req.TargetURL, Kind: req.Kind, Records: []models.ScrapedPost{}}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Mode: "test"},
		Auth:      config.AuthConfig{Enabled: true, APIKeys: []string{"k1"}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 2},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ex := &handler.Executor{Runner: okRunner{}, Limiter: pool.New(1)}
	return NewRouter(ctx, ex, handler.NewBatchStore(time.Hour), cfg, time.Now())
}

func post(r http.Handler, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const body = `{"targetUrl":"https://example","cookies":[]}`

func TestRouter_HealthIsPublic(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ScrapeRequiresKey(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w := post(r, "/api/v1/scrape", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeUnauthorized)

	w = post(r, "/api/v1/scrape", "wrong", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(r, "/api/v1/scrape", "k1", body)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_LegacyRouteIsGuarded(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w := post(r, "/scrape", "", `{"searchUrl":"https://example","cookies":"[]"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(r, "/scrape", "k1", `{"searchUrl":"https://example","cookies":"[]"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"searchUrl":"https://example","results":[]}`, w.Body.String())
}

func TestRouter_LegacyRejectionShape(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	r := newTestRouter(t, cfg)
	legacy := `{"searchUrl":"https://example","cookies":"[]"}`

	w := post(r, "/scrape", "", legacy)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"missing API key: provide X-API-Key header or Authorization: Bearer <key>"}`, w.Body.String())

	w = post(r, "/scrape", "wrong", legacy)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"invalid API key"}`, w.Body.String())

	require.Equal(t, http.StatusOK, post(r, "/scrape", "k1", legacy).Code)
	w = post(r, "/scrape", "k1", legacy)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded, please slow down"}`, w.Body.String())
}

func TestRouter_RoutesShareRateBudget(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	r := newTestRouter(t, cfg)

	require.Equal(t, http.StatusOK, post(r, "/scrape", "k1", `{"searchUrl":"https://example","cookies":"[]"}`).Code)

	w := post(r, "/api/v1/scrape", "k1", body)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	var resp models.ScrapeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, models.ErrCodeRateLimited, resp.Error.Code)
}

func TestRouter_RateLimitPerKey(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}
	r := newTestRouter(t, cfg)

	assert.Equal(t, http.StatusOK, post(r, "/api/v1/scrape", "k1", body).Code)
	assert.Equal(t, http.StatusOK, post(r, "/api/v1/scrape", "k1", body).Code)

	w := post(r, "/api/v1/scrape", "k1", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeRateLimited)
}

func TestRouter_AuthDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Enabled = false
	r := newTestRouter(t, cfg)

	assert.Equal(t, http.StatusOK, post(r, "/api/v1/scrape", "", body).Code)
}
