// Package model defines the wire types shared by the HTTP, MCP, and
// gateway layers: the invocation request, the loosely-typed parameter
// values, and the standard error envelope.
package model

import (
	"fmt"
	"strings"
	"time"
)

// MaxTargetNameLen bounds the target name. Target names are interpolated
// into quoted identifiers, and Postgres truncates identifiers beyond 63
// bytes anyway; rejecting early gives the caller a clearer error.
const MaxTargetNameLen = 63

// ExecuteRequest is the request body for POST /v1/execute (and the
// legacy /api/query/GenericExecute path).
type ExecuteRequest struct {
	AppID      int64      `json:"appId"`
	Name       string     `json:"name"`
	Parameters Parameters `json:"parameters"`
}

// Validate checks the request before any tenant resolution is attempted.
func (r ExecuteRequest) Validate() error {
	if r.AppID <= 0 {
		return fmt.Errorf("appId must be a positive integer")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name must not be blank")
	}
	if len(r.Name) > MaxTargetNameLen {
		return fmt.Errorf("name exceeds maximum length of %d bytes", MaxTargetNameLen)
	}
	return nil
}

// APIError is the standard error response envelope. Successful execute
// responses are the bare canonical JSON value, not an envelope — existing
// clients of the original API depend on that shape.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains request metadata included in every error response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorCode constants for API errors that originate in the transport
// layer rather than the gateway (gateway failures carry their own kinds).
const (
	ErrCodeInvalidInput  = "INVALID_REQUEST"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// HealthResponse is the body for GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
