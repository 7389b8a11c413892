package worker

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dustguard/dustguard/internal/api/response"
)

// MetricsSource reports job statistics.
type MetricsSource interface {
	MetricsSnapshot() map[string]any
}

type healthBody struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Jobs    map[string]any `json:"jobs,omitempty"`
}

// NewHealthHandler serves the worker's health endpoint for the platform's
// liveness probe.
func NewHealthHandler(version string, jobs MetricsSource) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		body := healthBody{Status: "healthy", Version: version}
		if jobs != nil {
			body.Jobs = jobs.MetricsSnapshot()
		}
		response.JSON(w, req, http.StatusOK, body)
	})
	return r
}
