package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// scrapeRequest mirrors the sessionscrape API request model.
type scrapeRequest struct {
	TargetURL string          `json:"targetUrl"`
	Cookies   json.RawMessage `json:"cookies"`
	Kind      string          `json:"kind"`
	Readiness string          `json:"readiness,omitempty"`
}

// scrapeResponse mirrors the sessionscrape API response model.
type scrapeResponse struct {
	Success   bool            `json:"success"`
	TargetURL string          `json:"target_url"`
	Kind      string          `json:"kind"`
	Results   json.RawMessage `json:"results"`
	Count     int             `json:"count"`
	Timing    *struct {
		TotalMs int64 `json:"total_ms"`
	} `json:"timing"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("SESSIONSCRAPE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}
	apiKey := os.Getenv("SESSIONSCRAPE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "SESSIONSCRAPE_API_KEY is required")
		os.Exit(1)
	}

	s := newServer(apiURL, apiKey)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(apiURL, apiKey string) *server.MCPServer {
	s := server.NewMCPServer(
		"sessionscrape",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(scrapeTool("scrape_posts",
		"Open a feed or search page with a captured login session, scroll it to load more items, and return the text of every post."),
		handleScrape(apiURL, apiKey, "posts"))

	s.AddTool(scrapeTool("scrape_profiles",
		"Open a people-search page with a captured login session, scroll it to load more results, and return one record per person (urn, name, profile URL, picture, headline, location, summary)."),
		handleScrape(apiURL, apiKey, "profiles"))

	return s
}

func scrapeTool(name, description string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The page to open with the restored session"),
		),
		mcp.WithString("cookies",
			mcp.Required(),
			mcp.Description("JSON array of cookie objects exported from a logged-in browser (name, value, domain, path, sameSite, ...)"),
		),
		mcp.WithString("readiness",
			mcp.Description("When a navigation counts as done: 'domcontentloaded' (default) or 'networkidle'"),
			mcp.Enum("domcontentloaded", "networkidle"),
		),
	)
}

// apiPost sends a POST request to the sessionscrape API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func handleScrape(apiURL, apiKey, kind string) server.ToolHandlerFunc {
	// A run takes the idle wait plus five settle delays at least.
	client := &http.Client{Timeout: 10 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		cookies, err := request.RequireString("cookies")
		if err != nil {
			return mcp.NewToolResultError("cookies is required"), nil
		}
		if !json.Valid([]byte(cookies)) {
			return mcp.NewToolResultError("cookies must be a JSON array"), nil
		}

		payload := scrapeRequest{
			TargetURL: url,
			Cookies:   json.RawMessage(cookies),
			Kind:      kind,
			Readiness: request.GetString("readiness", ""),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/scrape", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scrape request failed: %v", err)), nil
		}

		var scrapeResp scrapeResponse
		if err := json.Unmarshal(respBody, &scrapeResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !scrapeResp.Success {
			errMsg := "scrape failed"
			if scrapeResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", scrapeResp.Error.Code, scrapeResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(formatResult(&scrapeResp)), nil
	}
}

// formatResult renders the records as a header plus pretty JSON.
func formatResult(r *scrapeResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Scraped %d %s from %s", r.Count, r.Kind, r.TargetURL)
	if r.Timing != nil {
		fmt.Fprintf(&sb, " in %s", (time.Duration(r.Timing.TotalMs) * time.Millisecond).Round(time.Second))
	}
	sb.WriteString("\n\n")

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, r.Results, "", "  "); err != nil {
		// Fall back to raw JSON.
		pretty.Write(r.Results)
	}
	sb.Write(pretty.Bytes())
	return sb.String()
}
