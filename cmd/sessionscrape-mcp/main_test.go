package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callTool(t *testing.T, apiURL, kind string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = "scrape_" + kind
	req.Params.Arguments = args

	res, err := handleScrape(apiURL, "key", kind)(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestHandleScrape_ForwardsKindAndCookies(t *testing.T) {
	var (
		got scrapeRequest
		raw map[string]any
	)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/scrape", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-API-Key"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		require.NoError(t, json.Unmarshal(body, &raw))
		_, _ = w.Write([]byte(`{"success":true,"target_url":"https://example/people","kind":"profiles","count":1,
			"results":[{"urn":"urn:li:member:1","name":"Jane Doe"}],"timing":{"total_ms":21000}}`))
	}))
	defer api.Close()

	res := callTool(t, api.URL, "profiles", map[string]any{
		"url":     "https://example/people",
		"cookies": `[{"name":"li_at","value":"x"}]`,
	})

	assert.False(t, res.IsError)
	assert.Equal(t, "profiles", got.Kind)
	assert.Equal(t, "https://example/people", got.TargetURL)
	assert.Equal(t, "https://example/people", raw["targetUrl"])
	assert.JSONEq(t, `[{"name":"li_at","value":"x"}]`, string(got.Cookies))

	text := resultText(t, res)
	assert.Contains(t, text, "Scraped 1 profiles from https://example/people in 21s")
	assert.Contains(t, text, `"name": "Jane Doe"`)
}

func TestHandleScrape_ReportsAPIError(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"NAVIGATION_EXHAUSTED","message":"failed to open page after 3 attempts"}}`))
	}))
	defer api.Close()

	res := callTool(t, api.URL, "posts", map[string]any{
		"url":     "https://example/feed",
		"cookies": `[]`,
	})

	assert.True(t, res.IsError)
	assert.Equal(t, "[NAVIGATION_EXHAUSTED] failed to open page after 3 attempts", resultText(t, res))
}

func TestHandleScrape_ValidatesArguments(t *testing.T) {
	res := callTool(t, "http://127.0.0.1:0", "posts", map[string]any{"url": "https://example"})
	assert.True(t, res.IsError)

	res = callTool(t, "http://127.0.0.1:0", "posts", map[string]any{"url": "https://example", "cookies": "{oops"})
	assert.True(t, res.IsError)
	assert.Equal(t, "cookies must be a JSON array", resultText(t, res))
}
