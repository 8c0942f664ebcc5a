// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

// Package api serves the evaluation controller over HTTP with chi.
//
// Every JSON response uses the APIResponse envelope. Control operations
// answer 202 when the controller accepted them and 409 with the rejection
// reason when it did not:
//
//	POST /api/v1/start        {"algorithms":["itemmean"],"params":{}}
//	POST /api/v1/pause
//	POST /api/v1/resume
//	POST /api/v1/stop
//	POST /api/v1/force-stop
//	PUT  /api/v1/pool         {"pairs":[{"training_uri":"duckdb://train","testing_uri":"duckdb://test"}]}
//	POST /api/v1/pool/reload
//
// Read endpoints are /api/v1/health, /status, /result, /pool, /algorithms
// and the run archive under /api/v1/runs. Prometheus scrapes /metrics.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/recbench/internal/middleware"
)

// NewRouter builds the HTTP handler for h.
func NewRouter(h *Handler, cfg MiddlewareConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(cfg))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(securityHeaders)

		// Reads
		r.Group(func(r chi.Router) {
			r.Use(rateLimit(cfg, 10))
			r.Get("/health", h.Health)
			r.Get("/status", h.Status)
			r.Get("/result", h.Result)
			r.Get("/pool", h.Pool)
			r.Get("/algorithms", h.Algorithms)
			r.Get("/runs", h.Runs)
			r.Get("/runs/{id}", h.Run)
		})

		// Control
		r.Group(func(r chi.Router) {
			r.Use(rateLimit(cfg, 1))
			r.Post("/start", h.Start)
			r.Post("/pause", h.Pause)
			r.Post("/resume", h.Resume)
			r.Post("/stop", h.Stop)
			r.Post("/force-stop", h.ForceStop)
			r.Put("/pool", h.UpdatePool)
			r.Post("/pool/reload", h.ReloadPool)
			r.Delete("/runs/{id}", h.DeleteRun)
			r.Post("/remote/export", h.Export)
			r.Post("/remote/unexport", h.Unexport)
		})
	})

	return r
}
