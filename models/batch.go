package models

import "sync"

// BatchRequest is the payload for POST /api/v1/batch.
type BatchRequest struct {
	// Runs are independent scrape runs, each with its own session.
	Runs []ScrapeRequest `json:"runs" binding:"required,min=1,max=50"`

	// WebhookURL receives a "batch.completed" event when every run has finished.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs the webhook body when set.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// BatchResponse is the immediate response for POST /api/v1/batch.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Completed int               `json:"completed"`
	Total     int               `json:"total"`
	Results   []*ScrapeResponse `json:"results,omitempty"`
}

// BatchJob tracks an in-progress batch. All access goes through its methods.
type BatchJob struct {
	ID        string
	Total     int
	CreatedAt int64 // unix timestamp

	mu        sync.Mutex
	status    string // "processing", "completed", "failed", "partial"
	completed int
	results   []*ScrapeResponse
}

// NewBatchJob creates a job in the "processing" state.
func NewBatchJob(id string, total int, createdAt int64) *BatchJob {
	return &BatchJob{
		ID:        id,
		Total:     total,
		CreatedAt: createdAt,
		status:    "processing",
		results:   make([]*ScrapeResponse, total),
	}
}

// Record stores the response of run idx.
func (j *BatchJob) Record(idx int, resp *ScrapeResponse) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results[idx] = resp
	j.completed++
}

// Finish sets the terminal status from the recorded results.
func (j *BatchJob) Finish() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	failed := 0
	for _, r := range j.results {
		if r == nil || !r.Success {
			failed++
		}
	}
	switch {
	case failed == j.Total:
		j.status = "failed"
	case failed > 0:
		j.status = "partial"
	default:
		j.status = "completed"
	}
	return j.status
}

// Snapshot returns a copy of the job state for the API.
func (j *BatchJob) Snapshot() BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]*ScrapeResponse, len(j.results))
	copy(results, j.results)
	return BatchStatusResponse{
		ID:        j.ID,
		Status:    j.status,
		Completed: j.completed,
		Total:     j.Total,
		Results:   results,
	}
}
