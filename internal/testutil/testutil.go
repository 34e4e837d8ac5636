// Package testutil provides shared test infrastructure for integration tests
// that require a Postgres container playing both registry and tenant roles.
//
// Usage in TestMain:
//
//	func TestMain(m *testing.M) {
//	    tc := testutil.MustStartPostgres()
//	    defer tc.Terminate()
//	    os.Exit(m.Run())
//	}
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestContainer wraps a testcontainers container with a DSN for connecting.
type TestContainer struct {
	Container testcontainers.Container
	DSN       string
	Host      string
	Port      int
}

// MustStartPostgres starts a Postgres container with the tenant registry
// table and the dbo routine schema pre-created. Calls os.Exit(1) on failure
// (suitable for TestMain).
func MustStartPostgres() *TestContainer {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "dispatch",
			"POSTGRES_PASSWORD": "dispatch",
			"POSTGRES_DB":       "dispatch",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to start container: %v\n", err)
		os.Exit(1)
	}

	host, err := container.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to get container port: %v\n", err)
		os.Exit(1)
	}

	dsn := fmt.Sprintf("postgres://dispatch:dispatch@%s:%s/dispatch?sslmode=disable", host, port.Port())

	// Bootstrap the registry table and the routine schema the classifier
	// looks at, so tests can register tenants and create routines directly.
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to bootstrap connection: %v\n", err)
		os.Exit(1)
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS applications (
			_appid        BIGINT PRIMARY KEY,
			_server       TEXT NOT NULL,
			_userdatabase TEXT NOT NULL,
			_userid       TEXT NOT NULL,
			_userpassword TEXT NOT NULL
		)`,
		`CREATE SCHEMA IF NOT EXISTS dbo`,
	} {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			fmt.Fprintf(os.Stderr, "testutil: bootstrap failed: %v\n", err)
			os.Exit(1)
		}
	}
	_ = conn.Close(ctx)

	return &TestContainer{Container: container, DSN: dsn, Host: host, Port: port.Int()}
}

// RegisterTenant inserts (or replaces) a registry row pointing a tenant id
// back at this container's own database, so the container serves as both
// registry and tenant.
func (tc *TestContainer) RegisterTenant(ctx context.Context, appID int64) error {
	conn, err := pgx.Connect(ctx, tc.DSN)
	if err != nil {
		return fmt.Errorf("testutil: connect: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	_, err = conn.Exec(ctx,
		`INSERT INTO applications (_appid, _server, _userdatabase, _userid, _userpassword)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (_appid) DO UPDATE SET _server = EXCLUDED._server`,
		appID, tc.Host, "dispatch", "dispatch", "dispatch")
	if err != nil {
		return fmt.Errorf("testutil: register tenant: %w", err)
	}
	return nil
}

// Exec runs a statement against the container database. Useful for
// creating routines and relations tenants will invoke.
func (tc *TestContainer) Exec(ctx context.Context, sql string, args ...any) error {
	conn, err := pgx.Connect(ctx, tc.DSN)
	if err != nil {
		return fmt.Errorf("testutil: connect: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	if _, err := conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("testutil: exec: %w", err)
	}
	return nil
}

// Terminate stops and removes the container.
func (tc *TestContainer) Terminate() {
	_ = tc.Container.Terminate(context.Background())
}

// TestLogger returns a logger configured for test output (warns only).
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
