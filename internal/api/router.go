package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/bloodwork/internal/api/middleware"
	"github.com/kiranshivaraju/bloodwork/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit      *mw.RateLimit
	MaxUploadBytes int64

	RootHandler    http.HandlerFunc
	HealthHandler  http.HandlerFunc
	AnalyzeHandler http.HandlerFunc
	ResultsHandler http.HandlerFunc
	HistoryHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.Client)

	r.Get("/", orNotImplemented(deps.RootHandler))
	r.Get("/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		var analyze http.Handler = orNotImplemented(deps.AnalyzeHandler)
		if deps.MaxUploadBytes > 0 {
			analyze = mw.MaxBytes(deps.MaxUploadBytes)(analyze)
		}
		r.Method(http.MethodPost, "/analyze", analyze)
		r.Get("/results/{taskID}", orNotImplemented(deps.ResultsHandler))
		r.Get("/history", orNotImplemented(deps.HistoryHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
