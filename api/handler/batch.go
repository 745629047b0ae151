package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/sessionscrape/models"
	"github.com/use-agent/sessionscrape/webhook"
	"golang.org/x/sync/errgroup"
)

// BatchStore holds all in-flight and completed batch jobs.
type BatchStore struct {
	jobs sync.Map
	ttl  time.Duration
}

// NewBatchStore creates a store whose finished jobs expire after ttl.
func NewBatchStore(ttl time.Duration) *BatchStore {
	return &BatchStore{ttl: ttl}
}

// Load returns the job with id.
func (s *BatchStore) Load(id string) (*models.BatchJob, bool) {
	v, ok := s.jobs.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*models.BatchJob), true
}

func (s *BatchStore) store(job *models.BatchJob) {
	s.jobs.Store(job.ID, job)
}

// Expire drops jobs created before now-ttl. It returns how many were dropped.
func (s *BatchStore) Expire(now time.Time) int {
	cutoff := now.Add(-s.ttl).Unix()
	dropped := 0
	s.jobs.Range(func(key, value any) bool {
		if value.(*models.BatchJob).CreatedAt < cutoff {
			s.jobs.Delete(key)
			dropped++
		}
		return true
	})
	return dropped
}

// Janitor expires old jobs every interval until ctx ends.
func (s *BatchStore) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Expire(now); n > 0 {
				slog.Debug("expired batch jobs", "count", n)
			}
		}
	}
}

// PostBatch returns a handler for POST /api/v1/batch.
// It validates the request, creates a batch job, and runs every entry in
// the background. Each run is admitted through the limiter like a single
// scrape, so a batch never holds more browser contexts than the pool allows.
func PostBatch(ex *Executor, store *BatchStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInputShape,
					Message: err.Error(),
				},
			})
			return
		}

		job := models.NewBatchJob("batch-"+uuid.NewString(), len(req.Runs), time.Now().Unix())
		store.store(job)

		go runBatch(ex, job, req)

		c.JSON(http.StatusOK, models.BatchResponse{
			ID:     job.ID,
			Status: "processing",
			Total:  job.Total,
		})
	}
}

// GetBatch returns a handler for GET /api/v1/batch/:id.
func GetBatch(store *BatchStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := store.Load(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInputShape,
					Message: "batch job not found",
				},
			})
			return
		}
		c.JSON(http.StatusOK, job.Snapshot())
	}
}

// runBatch processes every run of a batch job and fires the webhook, if
// any, once all of them have finished.
func runBatch(ex *Executor, job *models.BatchJob, req models.BatchRequest) {
	var g errgroup.Group
	for i := range req.Runs {
		run := req.Runs[i]
		g.Go(func() error {
			resp, _ := ex.Execute(context.Background(), &run)
			job.Record(i, resp)
			return nil
		})
	}
	_ = g.Wait()

	status := job.Finish()
	snap := job.Snapshot()
	slog.Info("batch job finished",
		"id", job.ID,
		"status", status,
		"total", job.Total,
	)

	if req.WebhookURL != "" {
		webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
			Type:      "batch.completed",
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data:      snap,
		})
	}
}
