package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudwinks/dispatch/internal/gateway"
	"github.com/cloudwinks/dispatch/internal/model"
	"github.com/cloudwinks/dispatch/internal/ratelimit"
)

// Executor runs one invocation request through the gateway pipeline.
// *gateway.Gateway is the production implementation.
type Executor interface {
	Execute(ctx context.Context, req model.ExecuteRequest) (any, error)
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	gw                  Executor
	limiter             ratelimit.Limiter
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	openapiSpec         []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): Limiter, OpenAPISpec.
type HandlersDeps struct {
	Gateway             Executor
	Limiter             ratelimit.Limiter
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	limiter := d.Limiter
	if limiter == nil {
		limiter = ratelimit.NoopLimiter{}
	}
	return &Handlers{
		gw:                  d.Gateway,
		limiter:             limiter,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		openapiSpec:         d.OpenAPISpec,
	}
}

// HandleExecute handles POST /v1/execute and the legacy
// POST /api/query/GenericExecute path.
func (h *Handlers) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req model.ExecuteRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	// Per-tenant rate limit, checked after decode so the bucket keys on
	// the tenant rather than the client address. Fail open on limiter
	// malfunction.
	if allowed, err := h.limiter.Allow(r.Context(), fmt.Sprintf("app:%d", req.AppID)); err == nil && !allowed {
		w.Header().Set("Retry-After", "1")
		writeError(w, r, http.StatusTooManyRequests, model.ErrCodeRateLimited, "too many requests")
		return
	}

	result, err := h.gw.Execute(r.Context(), req)
	if err != nil {
		h.writeGatewayError(w, r, req, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeGatewayError maps a gateway failure kind onto a status code.
// Client mistakes caught before any I/O are 4xx; everything downstream
// of tenant resolution is a 5xx so tooling can distinguish "bad
// request" from "the call failed".
func (h *Handlers) writeGatewayError(w http.ResponseWriter, r *http.Request, req model.ExecuteRequest, err error) {
	kind := gateway.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case gateway.ErrInvalidRequest, gateway.ErrUnexpectedParameters:
		status = http.StatusBadRequest
	case gateway.ErrTimeout:
		status = http.StatusGatewayTimeout
	}

	if status >= 500 {
		h.logger.Error("execute failed",
			"app_id", req.AppID, "name", req.Name, "kind", string(kind), "error", err,
			"request_id", RequestIDFromContext(r.Context()))
	}
	writeError(w, r, status, string(kind), gateway.MessageOf(err))
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleOpenAPISpec handles GET /openapi.yaml.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}
