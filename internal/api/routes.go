package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SetupRoutes mounts the query, health and stats endpoints
func (h *Handler) SetupRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware)

	r.Get("/fetch", h.FetchHandler)
	r.Get("/healthz", h.HealthHandler)
	r.Get("/stats", h.StatsHandler)
	r.Get("/stats/history", h.StatsHistoryHandler)

	return r
}
