package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sessionscrape/models"
	"github.com/use-agent/sessionscrape/pool"
	"github.com/use-agent/sessionscrape/scraper"
)

// Runner executes one scrape run. *scraper.Scraper satisfies it.
type Runner interface {
	Run(ctx context.Context, req *models.ScrapeRequest) (*scraper.Result, error)
}

// Executor admits runs through the limiter under the run-level timeout and
// shapes their outcome as an API response. It is shared by the scrape and
// batch handlers.
type Executor struct {
	Runner     Runner
	Limiter    *pool.Limiter
	RunTimeout time.Duration
}

// Execute runs req and returns the response plus the error, if any, that
// decides the HTTP status.
func (e *Executor) Execute(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResponse, error) {
	totalStart := time.Now()
	req.Defaults()

	if e.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.RunTimeout)
		defer cancel()
	}

	var result *scraper.Result
	queued, err := e.Limiter.Do(ctx, func(ctx context.Context) error {
		var runErr error
		result, runErr = e.Runner.Run(ctx, req)
		return runErr
	})

	resp := &models.ScrapeResponse{
		TargetURL: req.TargetURL,
		Kind:      req.Kind,
	}
	if err != nil {
		scrapeErr := models.AsScrapeError(err)
		resp.Error = scrapeErr.ToDetail()
		resp.Timing = models.TimingInfo{
			TotalMs: time.Since(totalStart).Milliseconds(),
			QueueMs: queued.Milliseconds(),
		}
		return resp, scrapeErr
	}

	resp.Success = true
	resp.Results = result.Records
	resp.Count = result.Count
	resp.Timing = result.Timing
	resp.Timing.QueueMs = queued.Milliseconds()
	resp.Timing.TotalMs = time.Since(totalStart).Milliseconds()
	return resp, nil
}

// Scrape returns a handler for POST /api/v1/scrape.
//
// Orchestration flow:
//  1. Parse the request body.
//  2. Wait for a free run slot (records queue_ms).
//  3. Scraper.Run: restore session, navigate, reveal, extract.
//  4. Map the outcome to a status code and respond.
func Scrape(ex *Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ScrapeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInputShape,
					Message: err.Error(),
				},
			})
			return
		}

		resp, err := ex.Execute(c.Request.Context(), &req)
		if err != nil {
			c.JSON(mapErrorToStatus(models.AsScrapeError(err)), resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// LegacyScrape returns a handler for POST /scrape, the original route. It
// takes {searchUrl, cookies} and answers {searchUrl, results} or {error}.
func LegacyScrape(ex *Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.SearchURL == "" || len(req.Cookies) == 0 {
			c.JSON(http.StatusBadRequest, models.LegacyErrorResponse{
				Error: `Missing "searchUrl" or "cookies" in request body`,
			})
			return
		}

		resp, err := ex.Execute(c.Request.Context(), &req)
		if err != nil {
			status := http.StatusInternalServerError
			if models.CodeOf(err) == models.ErrCodeInputShape {
				status = http.StatusBadRequest
			}
			c.JSON(status, models.LegacyErrorResponse{Error: resp.Error.Message})
			return
		}
		c.JSON(http.StatusOK, models.LegacyScrapeResponse{
			SearchURL: req.SearchURL,
			Results:   resp.Results,
		})
	}
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigationExhausted:
		return http.StatusBadGateway // 502
	case models.ErrCodeInputShape:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
