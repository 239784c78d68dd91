package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/numeral/internal/chartservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *chartservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Analysis.
	r.Post("/analyze", h.Analyze)
	r.Post("/analyze/explain", h.Explain)
	r.Post("/analyze/batch", h.AnalyzeBatch)

	// Charts CRUD. GET /charts/{path}/analysis is served by GetChart.
	r.Get("/charts", h.ListCharts)
	r.Post("/charts", h.CreateChart)
	r.Get("/charts/*", h.GetChart)
	r.Put("/charts/*", h.UpdateChart)
	r.Delete("/charts/*", h.DeleteChart)

	r.Get("/search", h.Search)
	r.Get("/keys/{key}/charts", h.ChartsInKey)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
