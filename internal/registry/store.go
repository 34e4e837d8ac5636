package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTenantNotFound is returned when no registry row matches the tenant id.
var ErrTenantNotFound = errors.New("registry: tenant not found")

// ErrUnavailable is returned when the registry lookup itself cannot complete.
var ErrUnavailable = errors.New("registry: tenant registry unavailable")

// Store looks up tenant records. Abstracted so tests can substitute a
// double that counts lookups.
type Store interface {
	Lookup(ctx context.Context, tenantID int64) (*Descriptor, error)
}

// PGStore reads tenant records from the applications relation of the
// framework database. Column names are inherited from the framework
// schema and are not configurable.
type PGStore struct {
	pool       *pgxpool.Pool
	tenantPort int
}

// NewPGStore creates a store backed by the given framework-database pool.
// tenantPort is the Postgres port tenant databases listen on; the
// registry relation stores only the host.
func NewPGStore(pool *pgxpool.Pool, tenantPort int) *PGStore {
	return &PGStore{pool: pool, tenantPort: tenantPort}
}

const lookupQuery = `SELECT _server, _userdatabase, _userid, _userpassword
FROM applications WHERE _appid = $1`

// Lookup fetches the registry row for tenantID and builds a Descriptor.
func (s *PGStore) Lookup(ctx context.Context, tenantID int64) (*Descriptor, error) {
	d := &Descriptor{Port: s.tenantPort}
	err := s.pool.QueryRow(ctx, lookupQuery, tenantID).
		Scan(&d.Host, &d.Database, &d.User, &d.Password)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: app %d", ErrTenantNotFound, tenantID)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return d, nil
}
