// Package gateway implements the dynamic invocation pipeline: resolve
// tenant, classify target, coerce parameters, build the statement, run
// it, and normalize the result. Each request moves through those steps
// strictly in order; the first failure terminates the request.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cloudwinks/dispatch/internal/model"
	"github.com/cloudwinks/dispatch/internal/registry"
)

// Resolver maps a tenant id to a connection descriptor.
// *registry.Router is the production implementation.
type Resolver interface {
	Resolve(ctx context.Context, tenantID int64) (*registry.Descriptor, error)
}

// Conn is the capability set the gateway needs from an open tenant
// connection. *pgx.Conn satisfies it directly.
type Conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

// Connector opens tenant connections from descriptors. Connections are
// never shared across requests: each request gets a fresh one for its
// exclusive use and closes it on every exit path.
type Connector interface {
	Connect(ctx context.Context, d *registry.Descriptor) (Conn, error)
}

// PGXConnector opens direct pgx connections to tenant databases.
type PGXConnector struct{}

// Connect opens a connection using the descriptor's DSN.
func (PGXConnector) Connect(ctx context.Context, d *registry.Descriptor) (Conn, error) {
	conn, err := pgx.Connect(ctx, d.DSN())
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Config holds gateway construction parameters.
type Config struct {
	Router         Resolver
	Connector      Connector // defaults to PGXConnector
	RoutineSchema  string
	RelationSchema string
	ExecTimeout    time.Duration
	Logger         *slog.Logger
}

// Gateway orchestrates a single invocation per request.
type Gateway struct {
	router      Resolver
	connector   Connector
	builder     Builder
	execTimeout time.Duration
	logger      *slog.Logger
}

// defaultExecTimeout bounds requests when the embedder sets none. A
// zero timeout would expire every request context immediately.
const defaultExecTimeout = 30 * time.Second

// New creates a gateway. Router and Logger are required.
func New(cfg Config) *Gateway {
	connector := cfg.Connector
	if connector == nil {
		connector = PGXConnector{}
	}
	execTimeout := cfg.ExecTimeout
	if execTimeout <= 0 {
		execTimeout = defaultExecTimeout
	}
	return &Gateway{
		router:    cfg.Router,
		connector: connector,
		builder: Builder{
			RoutineSchema:  cfg.RoutineSchema,
			RelationSchema: cfg.RelationSchema,
		},
		execTimeout: execTimeout,
		logger:      cfg.Logger,
	}
}

// Execute runs one invocation request end to end and returns the
// canonical response value. Every returned error is a *Error whose
// kind maps to exactly one response status.
func (g *Gateway) Execute(ctx context.Context, req model.ExecuteRequest) (any, error) {
	if err := req.Validate(); err != nil {
		return nil, newErr(ErrInvalidRequest, "%s", err.Error())
	}

	desc, err := g.router.Resolve(ctx, req.AppID)
	if err != nil {
		return nil, mapRegistryErr(err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.execTimeout)
	defer cancel()

	conn, err := g.connector.Connect(ctx, desc)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, wrapErr(ErrTimeout, err, "connecting to tenant database timed out")
		}
		// Infrastructure-unavailable class: the caller's target may be
		// fine, the tenant database is not reachable.
		return nil, wrapErr(ErrRegistryUnavailable, err, "tenant database unavailable")
	}
	// Release on every exit path, including timeouts — Close gets a
	// fresh context because ctx may already be expired.
	defer func() { _ = conn.Close(context.WithoutCancel(ctx)) }()

	kind, err := classify(ctx, conn, g.builder.RoutineSchema, req.Name)
	if err != nil {
		return nil, err
	}

	coerced, err := coerceParams(req.Parameters)
	if err != nil {
		return nil, err
	}

	plan, err := g.builder.Build(kind, req.Name, coerced, req.Parameters.Form())
	if err != nil {
		return nil, err
	}

	g.logger.Debug("executing plan",
		"app_id", req.AppID, "name", req.Name, "kind", kind.String(),
		"params", len(coerced), "form", req.Parameters.Form().String())

	rows, err := conn.Query(ctx, plan.SQL, plan.Args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, wrapErr(ErrTimeout, err, "execution timed out")
		}
		return nil, wrapErr(ErrExecution, err, "execute %s %q: %v", kind, req.Name, err)
	}

	return normalize(rows)
}

// Classify resolves the tenant and reports whether name is a routine
// or a relation there. Used by the MCP surface; the HTTP execute path
// classifies inline.
func (g *Gateway) Classify(ctx context.Context, tenantID int64, name string) (Kind, error) {
	desc, err := g.router.Resolve(ctx, tenantID)
	if err != nil {
		return 0, mapRegistryErr(err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.execTimeout)
	defer cancel()

	conn, err := g.connector.Connect(ctx, desc)
	if err != nil {
		return 0, wrapErr(ErrRegistryUnavailable, err, "tenant database unavailable")
	}
	defer func() { _ = conn.Close(context.WithoutCancel(ctx)) }()

	return classify(ctx, conn, g.builder.RoutineSchema, name)
}

// mapRegistryErr translates registry sentinels into gateway kinds so
// clients can tell "bad tenant id" apart from "registry down".
func mapRegistryErr(err error) error {
	switch {
	case errors.Is(err, registry.ErrTenantNotFound):
		return wrapErr(ErrTenantNotFound, err, "%s", err.Error())
	case errors.Is(err, registry.ErrUnavailable):
		return wrapErr(ErrRegistryUnavailable, err, "tenant registry unavailable")
	default:
		return wrapErr(ErrRegistryUnavailable, err, "tenant resolution failed")
	}
}
