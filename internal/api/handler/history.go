package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kiranshivaraju/bloodwork/internal/api/response"
	"github.com/kiranshivaraju/bloodwork/pkg/models"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// ResultLister lists a user's results. store.ResultStore satisfies it.
type ResultLister interface {
	ListResults(ctx context.Context, userID string, limit int) ([]models.ResultSummary, error)
}

// NewHistoryHandler returns an http.HandlerFunc for GET /history.
func NewHistoryHandler(results ResultLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		userID := strings.TrimSpace(q.Get("user_id"))
		if userID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id is required", nil)
			return
		}

		limit := defaultHistoryLimit
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
				return
			}
			limit = n
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}

		items, err := results.ListResults(r.Context(), userID, limit)
		if err != nil {
			slog.Error("listing results", "error", err, "user_id", userID)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		if items == nil {
			items = []models.ResultSummary{}
		}

		response.JSON(w, map[string]any{"results": items})
	}
}
