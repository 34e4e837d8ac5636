package dispatch

import (
	"log/slog"

	"github.com/cloudwinks/dispatch/internal/gateway"
	"github.com/cloudwinks/dispatch/internal/ratelimit"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	port        int
	registryURL string
	logger      *slog.Logger
	version     string
	connector   gateway.Connector
	limiter     ratelimit.Limiter
}

// WithPort overrides the TCP port from config (DISPATCH_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithRegistryURL overrides the framework database connection string
// from config (REGISTRY_DATABASE_URL env var).
func WithRegistryURL(url string) Option {
	return func(o *resolvedOptions) { o.registryURL = url }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithConnector replaces how tenant connections are opened. The default
// dials tenant databases directly per request; embedders substitute this
// to route through a pooler or to fake tenants in tests.
func WithConnector(c gateway.Connector) Option {
	return func(o *resolvedOptions) { o.connector = c }
}

// WithLimiter replaces the rate limiter selected by config. Use this to
// share limit state across instances. Only the last call wins.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(o *resolvedOptions) { o.limiter = l }
}
