package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.recoverJSON)
	r.Use(s.accessLog)
	r.Use(metricsMW)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(s.cfg.Token))
		if s.cfg.RateRPS > 0 {
			r.Use(newRateLimiter(s.cfg.RateRPS, s.cfg.RateBurst).handler)
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/dispatch", s.handleDispatch)
			r.Post("/dispatch/auto", s.handleAutoDispatch)
			r.Get("/messages", s.handleMessages)
			r.Get("/stats", s.handleStats)
			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handlePutSettings)
			r.Post("/settings/test", s.handleTestSettings)
			r.Get("/catalog", s.handleCatalog)
		})

		if s.cfg.PProf {
			r.Mount("/debug", middleware.Profiler())
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, "not found", "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed", "not_found")
	})
	return r
}
