package dispatch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwinks/dispatch/internal/gateway"
	"github.com/cloudwinks/dispatch/internal/registry"
)

// stubConn answers the classifier with a fixed routine count and serves
// one canned result set.
type stubConn struct {
	routineCount int64
	payload      string
}

type stubRow struct{ count int64 }

func (r stubRow) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.count
	return nil
}

type stubRows struct {
	col  string
	data []any
	idx  int
}

func (r *stubRows) Close()                        {}
func (r *stubRows) Err() error                    { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *stubRows) Scan(...any) error             { return nil }
func (r *stubRows) Values() ([]any, error)        { return []any{r.data[r.idx-1]}, nil }
func (r *stubRows) RawValues() [][]byte           { return nil }
func (r *stubRows) Conn() *pgx.Conn               { return nil }

func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription {
	return []pgconn.FieldDescription{{Name: r.col}}
}

func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (c *stubConn) QueryRow(context.Context, string, ...any) pgx.Row {
	return stubRow{count: c.routineCount}
}

func (c *stubConn) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return &stubRows{col: "fn", data: []any{c.payload}}, nil
}

func (c *stubConn) Close(context.Context) error { return nil }

type stubConnector struct{ conn *stubConn }

func (s stubConnector) Connect(context.Context, *registry.Descriptor) (gateway.Conn, error) {
	return s.conn, nil
}

func newTestApp(t *testing.T, connector gateway.Connector) *App {
	t.Helper()
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	app, err := New(
		WithRegistryURL("postgres://svc:pw@registry.local:5432/framework"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithVersion("embed-test"),
		WithConnector(connector),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func TestNew_RequiresRegistryURL(t *testing.T) {
	t.Setenv("REGISTRY_DATABASE_URL", "")

	_, err := New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REGISTRY_DATABASE_URL")
}

func TestApp_HandlerServesHealth(t *testing.T) {
	app := newTestApp(t, stubConnector{conn: &stubConn{}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "embed-test")
}

func TestApp_GatewayUsesInjectedConnector(t *testing.T) {
	// The registry pool never dials in this test; the resolver is only
	// reached through HTTP execute, which the test below avoids. Direct
	// gateway access with an injected connector covers the wiring.
	app := newTestApp(t, stubConnector{conn: &stubConn{routineCount: 1, payload: `{"ok":true}`}})
	assert.NotNil(t, app.Gateway())
}

func TestApp_ExecuteEndpointWired(t *testing.T) {
	app := newTestApp(t, stubConnector{conn: &stubConn{}})

	// Tenant resolution will fail (no live registry), which proves the
	// request traveled the full middleware and gateway path.
	req := httptest.NewRequest(http.MethodPost, "/v1/execute",
		strings.NewReader(`{"appId":1,"name":"orders"}`))
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "TENANT_REGISTRY_UNAVAILABLE")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestApp_InvalidateTenantIsSafeWhenUncached(t *testing.T) {
	app := newTestApp(t, stubConnector{conn: &stubConn{}})
	app.InvalidateTenant(12345)
}
