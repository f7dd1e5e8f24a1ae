package handler

import (
	"net/http"

	"github.com/kiranshivaraju/bloodwork/internal/api/response"
)

// NewRootHandler returns the liveness check for GET /.
func NewRootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, map[string]string{
			"status":  "running",
			"message": "Blood Test Report Analyzer API is operational",
		})
	}
}
