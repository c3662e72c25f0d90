package jobs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/complyard/grc-engine/pkg/authz"
)

// enqueueRequest is the body for POST /jobs.
type enqueueRequest struct {
	Kind           string `json:"kind"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// EnqueueJobHandler handles POST /jobs. Only kinds with a registered runner
// are accepted.
func EnqueueJobHandler(store *JobStore, lookup RunnerLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if _, ok := lookup(req.Kind); !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown job kind %q", req.Kind))
			return
		}

		requestedBy := "system"
		if id, ok := authz.IdentityFromContext(r.Context()); ok && !id.Anonymous() {
			requestedBy = id.User
		}

		job := &MaintenanceJob{
			ID:          uuid.NewString(),
			Kind:        req.Kind,
			RequestedBy: requestedBy,
			RequestedAt: time.Now(),
		}
		if req.IdempotencyKey != "" {
			job.IdempotencyKey = &req.IdempotencyKey
		}
		created, err := store.Enqueue(job)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to enqueue job: %v", err))
			return
		}

		status := http.StatusCreated
		if created.ID != job.ID {
			// Idempotency key matched an existing non-terminal job.
			status = http.StatusOK
		}
		writeJSON(w, status, jobToResponse(created))
	}
}

// GetJobHandler handles GET /jobs/{jobId}.
func GetJobHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobId")
		if jobID == "" {
			writeError(w, http.StatusBadRequest, "missing job ID")
			return
		}

		job, err := store.Get(jobID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get job: %v", err))
			return
		}
		if job == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("job %q not found", jobID))
			return
		}

		writeJSON(w, http.StatusOK, jobToResponse(job))
	}
}

// ListJobsHandler handles GET /jobs.
// Query params: kind, state, requestedBy, pageSize, pageToken
func ListJobsHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := JobListFilter{
			Kind:        r.URL.Query().Get("kind"),
			State:       r.URL.Query().Get("state"),
			RequestedBy: r.URL.Query().Get("requestedBy"),
		}

		pageSize := 20
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}
		pageToken := r.URL.Query().Get("pageToken")

		records, nextToken, total, err := store.List(filter, pageSize, pageToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list jobs: %v", err))
			return
		}

		jobs := make([]jobResponse, len(records))
		for i := range records {
			jobs[i] = jobToResponse(&records[i])
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"jobs":          jobs,
			"nextPageToken": nextToken,
			"totalSize":     total,
		})
	}
}

// CancelJobHandler handles POST /jobs/{jobId}:cancel.
func CancelJobHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobId")
		if jobID == "" {
			writeError(w, http.StatusBadRequest, "missing job ID")
			return
		}

		if err := store.Cancel(jobID); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to cancel job: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status": "canceled",
			"jobId":  jobID,
		})
	}
}

// jobResponse is the API response for a maintenance job.
type jobResponse struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	RequestedBy   string `json:"requestedBy"`
	RequestedAt   string `json:"requestedAt"`
	State         string `json:"state"`
	Message       string `json:"message,omitempty"`
	StartedAt     string `json:"startedAt,omitempty"`
	FinishedAt    string `json:"finishedAt,omitempty"`
	AttemptCount  int    `json:"attemptCount"`
	LastError     string `json:"lastError,omitempty"`
	ItemsAffected int    `json:"itemsAffected,omitempty"`
	DurationMs    int64  `json:"durationMs,omitempty"`
}

func jobToResponse(job *MaintenanceJob) jobResponse {
	resp := jobResponse{
		ID:            job.ID,
		Kind:          job.Kind,
		RequestedBy:   job.RequestedBy,
		RequestedAt:   job.RequestedAt.Format(time.RFC3339),
		State:         string(job.State),
		Message:       job.Message,
		AttemptCount:  job.AttemptCount,
		LastError:     job.LastError,
		ItemsAffected: job.ItemsAffected,
		DurationMs:    job.DurationMs,
	}
	if job.StartedAt != nil {
		resp.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.FinishedAt != nil {
		resp.FinishedAt = job.FinishedAt.Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
