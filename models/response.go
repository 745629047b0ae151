package models

// ScrapeResponse is the response for POST /api/v1/scrape.
type ScrapeResponse struct {
	// Success indicates whether the run completed without errors.
	Success bool `json:"success"`

	// TargetURL echoes the page that was scraped.
	TargetURL string `json:"target_url"`

	// Kind is the extraction variant that produced Results.
	Kind Kind `json:"kind,omitempty"`

	// Results holds []ScrapedPost or []ScrapedProfile depending on Kind.
	// It is never a partial list: failed runs carry no results.
	Results any `json:"results,omitempty"`

	// Count is the number of records in Results.
	Count int `json:"count"`

	// Timing provides duration breakdowns for the run.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	TotalMs      int64 `json:"total_ms"`
	QueueMs      int64 `json:"queue_ms"`
	NavigationMs int64 `json:"navigation_ms"`
	RevealMs     int64 `json:"reveal_ms"`
	ExtractionMs int64 `json:"extraction_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the run limiter.
type PoolStats struct {
	MaxRuns    int   `json:"max_runs"`
	ActiveRuns int   `json:"active_runs"`
	Waiting    int   `json:"waiting"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

// LegacyScrapeResponse is the response of the original POST /scrape route,
// kept for clients written against it.
type LegacyScrapeResponse struct {
	SearchURL string `json:"searchUrl"`
	Results   any    `json:"results"`
}

// LegacyErrorResponse is the error body of POST /scrape.
type LegacyErrorResponse struct {
	Error string `json:"error"`
}
