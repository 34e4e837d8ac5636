// Package dispatch is the public API for embedding the dispatch gateway.
//
// Consumers who want the gateway inside a larger process construct it
// here instead of running cmd/dispatchd:
//
//	app, err := dispatch.New(
//	    dispatch.WithVersion(version),
//	    dispatch.WithLogger(logger),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: dispatch (root)
// imports internal/*, but internal/* never imports dispatch (root).
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/cloudwinks/dispatch/api"
	"github.com/cloudwinks/dispatch/internal/config"
	"github.com/cloudwinks/dispatch/internal/gateway"
	"github.com/cloudwinks/dispatch/internal/mcp"
	"github.com/cloudwinks/dispatch/internal/ratelimit"
	"github.com/cloudwinks/dispatch/internal/registry"
	"github.com/cloudwinks/dispatch/internal/server"
	"github.com/cloudwinks/dispatch/internal/telemetry"
)

// App is the gateway lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	pool         *pgxpool.Pool
	router       *registry.Router
	gw           *gateway.Gateway
	srv          *server.Server
	limiter      ratelimit.Limiter
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the gateway. It loads configuration, wires all
// subsystems, and returns a ready-to-run App. It does NOT dial the
// registry or accept HTTP connections — call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg := config.FromEnv()
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.registryURL != "" {
		cfg.RegistryURL = o.registryURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Registry pool. Connections open lazily; Run pings before serving.
	pool, err := pgxpool.New(context.Background(), cfg.RegistryURL)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("registry pool: %w", err)
	}

	router := registry.NewRouter(registry.NewPGStore(pool, cfg.TenantPort))

	gw := gateway.New(gateway.Config{
		Router:         router,
		Connector:      o.connector,
		RoutineSchema:  cfg.RoutineSchema,
		RelationSchema: cfg.RelationSchema,
		ExecTimeout:    cfg.ExecTimeout,
		Logger:         logger,
	})

	mcpSrv := mcp.New(gw, logger, version)

	limiter := o.limiter
	if limiter == nil {
		if cfg.RateLimitEnabled {
			limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		} else {
			limiter = ratelimit.NoopLimiter{}
		}
	}

	srv := server.New(server.ServerConfig{
		Gateway:             gw,
		Logger:              logger,
		Limiter:             limiter,
		MCPServer:           mcpSrv.MCPServer(),
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		OpenAPISpec:         api.OpenAPISpec,
	})

	return &App{
		cfg:          cfg,
		pool:         pool,
		router:       router,
		gw:           gw,
		srv:          srv,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run pings the registry, serves HTTP until ctx is cancelled, then
// shuts down gracefully. It blocks for the life of the server.
func (a *App) Run(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := a.pool.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("registry ping: %w", err)
	}

	a.logger.Info("dispatch starting", "version", a.version, "port", a.cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	return a.Close(context.Background())
}

// Handler returns the root HTTP handler, for embedding the gateway
// under an existing server or for tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Gateway returns the invocation gateway for direct in-process calls.
func (a *App) Gateway() *gateway.Gateway {
	return a.gw
}

// InvalidateTenant drops the cached connection descriptor for a tenant,
// forcing a fresh registry lookup on its next request.
func (a *App) InvalidateTenant(tenantID int64) {
	a.router.Invalidate(tenantID)
}

// Close releases resources without serving. Safe after a failed Run.
func (a *App) Close(ctx context.Context) error {
	_ = a.limiter.Close()
	a.pool.Close()
	return a.otelShutdown(ctx)
}
