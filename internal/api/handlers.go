// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recbench/internal/algorithm"
	"github.com/tomtom215/recbench/internal/archive"
	"github.com/tomtom215/recbench/internal/dataset"
	"github.com/tomtom215/recbench/internal/evaluator"
	"github.com/tomtom215/recbench/internal/logging"
	"github.com/tomtom215/recbench/internal/remote"
)

const maxBodyBytes = 1 << 20

// StartRequest is the body of POST /api/v1/start. Pool is optional; the
// controller's pool is used when it is absent.
type StartRequest struct {
	Algorithms []string          `json:"algorithms" validate:"required,min=1,unique,dive,required,algorithm"`
	Params     algorithm.Params  `json:"params,omitempty"`
	Pool       *dataset.PoolSpec `json:"pool,omitempty"`
}

// PoolRequest is the body of PUT /api/v1/pool.
type PoolRequest struct {
	Pairs []PairRequest `json:"pairs" validate:"required,min=1,dive"`
}

// PairRequest names the datasets of one pair by URI.
type PairRequest struct {
	TrainingURI string `json:"training_uri" validate:"required,uri"`
	TestingURI  string `json:"testing_uri" validate:"required,uri"`
	WholeURI    string `json:"whole_uri,omitempty" validate:"omitempty,uri"`
}

func (p PoolRequest) spec() dataset.PoolSpec {
	spec := dataset.PoolSpec{Pairs: make([]dataset.PairSpec, len(p.Pairs))}
	for i, pr := range p.Pairs {
		spec.Pairs[i] = dataset.PairSpec{
			TrainingURI: pr.TrainingURI,
			TestingURI:  pr.TestingURI,
			WholeURI:    pr.WholeURI,
		}
	}
	return spec
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Value any    `json:"value,omitempty"`
}

// Status is the body of GET /api/v1/status.
type Status struct {
	Info             evaluator.Info `json:"info"`
	PendingTeardowns int            `json:"pending_teardowns"`
	PoolSize         int            `json:"pool_size"`
	Exported         bool           `json:"exported"`
	LastRejection    string         `json:"last_rejection,omitempty"`
}

// Deps are the services the handlers operate on. Archive and Exporter may
// be nil when those features are disabled.
type Deps struct {
	Controller *evaluator.Controller
	Registry   *algorithm.Registry
	Archive    *archive.Store
	Exporter   *remote.Exporter

	// ReloadTimeout bounds POST /api/v1/pool/reload.
	ReloadTimeout time.Duration
}

// Handler serves the evaluation control API.
type Handler struct {
	deps     Deps
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewHandler creates a handler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(deps Deps, logger zerolog.Logger) *Handler {
	if deps.ReloadTimeout <= 0 {
		deps.ReloadTimeout = 30 * time.Second
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag or a nil func.
	_ = v.RegisterValidation("algorithm", func(fl validator.FieldLevel) bool {
		return deps.Registry != nil && deps.Registry.Has(fl.Field().String())
	})
	return &Handler{
		deps:     deps,
		validate: v,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return NewResponseWriter(w, r).WithState(h.deps.Controller.State().String())
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler should continue.
func (h *Handler) decode(rw *ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		rw.BadRequest("failed to read request body")
		return false
	}
	if len(body) > maxBodyBytes {
		rw.BadRequest("request body too large")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		rw.BadRequest(fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			rw.BadRequest(err.Error())
			return false
		}
		details := make([]FieldError, len(verrs))
		for i, fe := range verrs {
			details[i] = FieldError{Field: fe.Namespace(), Rule: fe.Tag(), Value: fe.Value()}
		}
		rw.ValidationError("request validation failed", details)
		return false
	}
	return true
}

// control answers a control operation: 202 when accepted, 409 with the
// rejection reason otherwise.
func (h *Handler) control(w http.ResponseWriter, r *http.Request, op string, ok bool) {
	rw := h.respond(w, r)
	if ok {
		rw.Accepted(h.deps.Controller.Info())
		return
	}
	reason := "operation rejected"
	if err := h.deps.Controller.LastRejection(); err != nil {
		reason = err.Error()
	}
	logging.Ctx(r.Context()).Debug().Str("operation", op).Str("reason", reason).Msg("Control request rejected")
	rw.Conflict(reason)
}

// Health reports liveness and the controller state.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r).Success(map[string]any{
		"status": "ok",
		"state":  h.deps.Controller.State().String(),
	})
}

// Status returns the progress record plus controller bookkeeping.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	c := h.deps.Controller
	st := Status{
		Info:             c.Info(),
		PendingTeardowns: c.PendingTeardowns(),
		PoolSize:         c.Pool().Len(),
	}
	if h.deps.Exporter != nil {
		st.Exported = h.deps.Exporter.Exported()
	}
	if err := c.LastRejection(); err != nil {
		st.LastRejection = err.Error()
	}
	h.respond(w, r).Success(st)
}

// Result returns the metrics of the current or most recent run.
func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r).Success(h.deps.Controller.Result().Records())
}

// Algorithms lists the registered algorithm names.
func (h *Handler) Algorithms(w http.ResponseWriter, r *http.Request) {
	var names []string
	if h.deps.Registry != nil {
		names = h.deps.Registry.Names()
	}
	h.respond(w, r).Success(names)
}

// Start launches a run.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	rw := h.respond(w, r)
	var req StartRequest
	if !h.decode(rw, r, &req) {
		return
	}
	algs, err := h.deps.Registry.Instantiate(req.Algorithms)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	pool := h.deps.Controller.Pool()
	if req.Pool != nil {
		pool = dataset.FromSpec(*req.Pool)
	}
	h.control(w, r, "start", h.deps.Controller.Start(algs, pool, req.Params))
}

// Pause pauses the active run.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, "pause", h.deps.Controller.Pause())
}

// Resume resumes a paused run.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, "resume", h.deps.Controller.Resume())
}

// Stop requests a cooperative stop.
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, "stop", h.deps.Controller.Stop())
}

// ForceStop abandons the active run.
func (h *Handler) ForceStop(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, "force_stop", h.deps.Controller.ForceStop())
}

// Pool describes the controller's pool.
func (h *Handler) Pool(w http.ResponseWriter, r *http.Request) {
	spec := dataset.PoolSpec{Pairs: []dataset.PairSpec{}}
	if p := h.deps.Controller.Pool(); p != nil {
		spec = p.Spec()
	}
	h.respond(w, r).Success(spec)
}

// UpdatePool replaces the pool. The new pairs stay unresolved until
// POST /api/v1/pool/reload.
func (h *Handler) UpdatePool(w http.ResponseWriter, r *http.Request) {
	rw := h.respond(w, r)
	var req PoolRequest
	if !h.decode(rw, r, &req) {
		return
	}
	h.control(w, r, "update_pool", h.deps.Controller.UpdatePool(dataset.FromSpec(req.spec())))
}

// ReloadPool resolves the pool's datasets from their URIs.
func (h *Handler) ReloadPool(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.deps.ReloadTimeout)
	defer cancel()
	h.control(w, r, "reload_pool", h.deps.Controller.ReloadPool(ctx))
}

// Runs lists archived runs, newest first.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	rw := h.respond(w, r)
	if h.deps.Archive == nil {
		rw.ServiceUnavailable("run archive is disabled")
		return
	}
	runs, err := h.deps.Archive.List(r.Context())
	if err != nil {
		rw.InternalError("failed to list runs", err)
		return
	}
	rw.Success(runs)
}

// Run returns one archived run with its records.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	rw := h.respond(w, r)
	if h.deps.Archive == nil {
		rw.ServiceUnavailable("run archive is disabled")
		return
	}
	run, err := h.deps.Archive.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, archive.ErrRunNotFound):
		rw.NotFound("run not found")
	case err != nil:
		rw.InternalError("failed to load run", err)
	default:
		rw.Success(run)
	}
}

// DeleteRun removes an archived run.
func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	rw := h.respond(w, r)
	if h.deps.Archive == nil {
		rw.ServiceUnavailable("run archive is disabled")
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := h.deps.Archive.Get(r.Context(), id); errors.Is(err, archive.ErrRunNotFound) {
		rw.NotFound("run not found")
		return
	}
	if err := h.deps.Archive.Delete(r.Context(), id); err != nil {
		rw.InternalError("failed to delete run", err)
		return
	}
	h.logger.Info().Str("run_id", id).Msg("Archived run deleted")
	rw.NoContent()
}

// Export publishes the controller on NATS. Repeated calls return the same
// stub.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	rw := h.respond(w, r)
	if h.deps.Exporter == nil {
		rw.ServiceUnavailable("remote export is disabled")
		return
	}
	stub, err := h.deps.Exporter.Export()
	if err != nil {
		if errors.Is(err, remote.ErrNotConnected) {
			rw.ServiceUnavailable(err.Error())
			return
		}
		rw.InternalError("failed to export controller", err)
		return
	}
	rw.Success(stub)
}

// Unexport withdraws the controller from NATS. It succeeds when the
// controller is not exported.
func (h *Handler) Unexport(w http.ResponseWriter, r *http.Request) {
	rw := h.respond(w, r)
	if h.deps.Exporter == nil {
		rw.ServiceUnavailable("remote export is disabled")
		return
	}
	if err := h.deps.Exporter.Unexport(); err != nil {
		rw.InternalError("failed to unexport controller", err)
		return
	}
	rw.NoContent()
}
