package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/bloodwork/internal/api/response"
	"github.com/kiranshivaraju/bloodwork/internal/queue"
	"github.com/kiranshivaraju/bloodwork/internal/store"
	"github.com/kiranshivaraju/bloodwork/pkg/models"
)

// JobReader looks up job state. queue.Queue satisfies it.
type JobReader interface {
	Get(ctx context.Context, id string) (*models.Job, error)
}

// ResultReader loads stored results. store.ResultStore satisfies it.
type ResultReader interface {
	GetResult(ctx context.Context, id int64) (*models.AnalysisResult, error)
}

type resultResponse struct {
	Status   string          `json:"status"`
	Result   json.RawMessage `json:"result"`
	Metadata resultMetadata  `json:"metadata"`
}

type resultMetadata struct {
	FileName  string `json:"file_name"`
	Query     string `json:"query"`
	CreatedAt string `json:"created_at"`
	ResultID  int64  `json:"result_id"`
}

// NewResultsHandler returns an http.HandlerFunc for GET /results/{taskID}.
func NewResultsHandler(jobs JobReader, results ResultReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID := chi.URLParam(r, "taskID")
		if taskID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "task_id is required", nil)
			return
		}

		job, err := jobs.Get(r.Context(), taskID)
		if err != nil {
			if errors.Is(err, queue.ErrJobNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Task not found", nil)
				return
			}
			slog.Error("fetching job", "error", err, "job_id", taskID)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		switch job.Status {
		case models.JobStatusFailed:
			response.Status(w, http.StatusInternalServerError, map[string]string{
				"status":  "error",
				"message": job.Error,
			})
			return
		case models.JobStatusComplete:
		default:
			response.JSON(w, map[string]string{"status": "processing"})
			return
		}

		if job.ResultID == nil {
			slog.Error("completed job has no result id", "job_id", job.ID)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Result unavailable", nil)
			return
		}

		res, err := results.GetResult(r.Context(), *job.ResultID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				slog.Error("completed job references missing result", "job_id", job.ID, "result_id", *job.ResultID)
			} else {
				slog.Error("fetching result", "error", err, "result_id", *job.ResultID)
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Result unavailable", nil)
			return
		}

		response.JSON(w, resultResponse{
			Status: models.JobStatusComplete,
			Result: analysisJSON(res.Analysis),
			Metadata: resultMetadata{
				FileName:  res.FileName,
				Query:     res.Query,
				CreatedAt: res.CreatedAt.UTC().Format(time.RFC3339),
				ResultID:  res.ID,
			},
		})
	}
}

// analysisJSON returns the stored payload as raw JSON, quoting it when it is
// not valid JSON.
func analysisJSON(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}
