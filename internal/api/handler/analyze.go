package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/kiranshivaraju/bloodwork/internal/api/response"
	"github.com/kiranshivaraju/bloodwork/internal/staging"
	"github.com/kiranshivaraju/bloodwork/internal/worker"
	"github.com/kiranshivaraju/bloodwork/pkg/models"
)

// DefaultQuery is used when the upload carries no query.
const DefaultQuery = "Summarize my Blood Test Report"

// Form fields up to this size stay in memory; larger files spill to disk.
const multipartMemory = 8 << 20

// maxFieldLen matches the VARCHAR(255) file_name and user_id columns.
const maxFieldLen = 255

// Stager persists uploads for later processing. *staging.Store satisfies it.
type Stager interface {
	Save(originalName string, r io.Reader) (string, error)
	Remove(path string) error
}

// Enqueuer hands jobs to the worker pool. queue.Queue satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *models.Job) (string, error)
}

// Analyzer runs an analysis inline. *worker.Processor satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, req worker.Request) worker.Outcome
}

type upload struct {
	path     string
	fileName string
	query    string
	userID   *string
}

// NewAnalyzeHandler returns the queued POST /analyze handler. It stages the
// file, enqueues a job and answers 202 without waiting for the pipeline.
func NewAnalyzeHandler(stager Stager, q Enqueuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		up, ok := receiveUpload(w, r, stager)
		if !ok {
			return
		}

		job := &models.Job{
			ID:        staging.IDFromPath(up.path),
			FilePath:  up.path,
			FileName:  up.fileName,
			Query:     up.query,
			UserID:    up.userID,
			Status:    models.JobStatusPending,
			CreatedAt: time.Now().UTC(),
		}
		id, err := q.Enqueue(r.Context(), job)
		if err != nil {
			slog.Error("enqueue failed", "error", err, "file", up.path)
			if rmErr := stager.Remove(up.path); rmErr != nil {
				slog.Warn("removing staged file", "error", rmErr, "file", up.path)
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to queue the report for analysis", nil)
			return
		}

		slog.Info("analysis queued", "job_id", id, "file_name", up.fileName)
		response.Accepted(w, map[string]string{
			"task_id": id,
			"status":  models.JobStatusPending,
		})
	}
}

// NewSyncAnalyzeHandler returns the inline POST /analyze handler. The request
// blocks until the pipeline finishes and the staged file is always removed.
func NewSyncAnalyzeHandler(stager Stager, an Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		up, ok := receiveUpload(w, r, stager)
		if !ok {
			return
		}
		defer func() {
			if err := stager.Remove(up.path); err != nil {
				slog.Warn("removing staged file", "error", err, "file", up.path)
			}
		}()

		out := an.Analyze(r.Context(), worker.Request{
			FilePath: up.path,
			FileName: up.fileName,
			Query:    up.query,
			UserID:   up.userID,
		})
		if !out.OK() {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Error processing blood report: "+out.Message, nil)
			return
		}

		response.JSON(w, syncResponse{
			Status:        "success",
			Query:         up.query,
			Analysis:      out.Analysis,
			FileProcessed: up.fileName,
		})
	}
}

type syncResponse struct {
	Status        string         `json:"status"`
	Query         string         `json:"query"`
	Analysis      *models.Report `json:"analysis"`
	FileProcessed string         `json:"file_processed"`
}

// receiveUpload parses the multipart form and stages the file. On failure it
// writes the error response and returns false.
func receiveUpload(w http.ResponseWriter, r *http.Request, stager Stager) (upload, bool) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeFormError(w, err)
		return upload{}, false
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeFormError(w, err)
		return upload{}, false
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if err := staging.ValidateFilename(name); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_FILE_TYPE", "Only PDF files are supported", nil)
		return upload{}, false
	}
	if len(name) > maxFieldLen {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "file name is too long",
			map[string]int{"max_length": maxFieldLen})
		return upload{}, false
	}

	uid := strings.TrimSpace(r.FormValue("user_id"))
	if len(uid) > maxFieldLen {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id is too long",
			map[string]int{"max_length": maxFieldLen})
		return upload{}, false
	}
	query := strings.TrimSpace(r.FormValue("query"))
	if query == "" {
		query = DefaultQuery
	}

	path, err := stager.Save(name, file)
	if err != nil {
		if errors.Is(err, staging.ErrInvalidFileType) {
			response.Error(w, http.StatusBadRequest, "INVALID_FILE_TYPE", "Only PDF files are supported", nil)
			return upload{}, false
		}
		slog.Error("staging upload failed", "error", err, "file_name", name)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store the uploaded file", nil)
		return upload{}, false
	}

	up := upload{path: path, fileName: name, query: query}
	if uid != "" {
		up.userID = &uid
	}
	return up, true
}

func writeFormError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			"Upload exceeds the maximum allowed size", map[string]int64{"limit_bytes": maxErr.Limit})
	case errors.Is(err, http.ErrMissingFile):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "file is required", nil)
	case errors.Is(err, multipart.ErrMessageTooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			"Upload exceeds the maximum allowed size", nil)
	case errors.Is(err, http.ErrNotMultipart):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Request must be multipart/form-data", nil)
	default:
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid multipart form", nil)
	}
}
