package registry_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwinks/dispatch/internal/registry"
)

// countingStore records how many lookups reach the backing registry.
type countingStore struct {
	lookups atomic.Int64
	delay   time.Duration
	err     error

	mu    sync.Mutex
	descs map[int64]*registry.Descriptor
}

func (s *countingStore) Lookup(_ context.Context, tenantID int64) (*registry.Descriptor, error) {
	s.lookups.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.descs[tenantID]
	if !ok {
		return nil, registry.ErrTenantNotFound
	}
	return d, nil
}

func newCountingStore(ids ...int64) *countingStore {
	descs := make(map[int64]*registry.Descriptor, len(ids))
	for _, id := range ids {
		descs[id] = &registry.Descriptor{Host: "db", Port: 5432, Database: "app", User: "u", Password: "p"}
	}
	return &countingStore{descs: descs}
}

func TestRouterResolve_CachesAfterFirstLookup(t *testing.T) {
	store := newCountingStore(7)
	router := registry.NewRouter(store)
	ctx := context.Background()

	first, err := router.Resolve(ctx, 7)
	require.NoError(t, err)
	second, err := router.Resolve(ctx, 7)
	require.NoError(t, err)

	assert.Same(t, first, second, "cache serves the same descriptor")
	assert.Equal(t, int64(1), store.lookups.Load())
}

func TestRouterResolve_ConcurrentSingleLookup(t *testing.T) {
	store := newCountingStore(7)
	store.delay = 10 * time.Millisecond
	router := registry.NewRouter(store)

	const n = 50
	var wg sync.WaitGroup
	descs := make([]*registry.Descriptor, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			descs[i], errs[i] = router.Resolve(context.Background(), 7)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, descs[0], descs[i], "all callers observe one descriptor")
	}
	assert.Equal(t, int64(1), store.lookups.Load(), "registry queried at most once per tenant")
}

func TestRouterResolve_DistinctTenantsLookupSeparately(t *testing.T) {
	store := newCountingStore(1, 2)
	router := registry.NewRouter(store)
	ctx := context.Background()

	_, err := router.Resolve(ctx, 1)
	require.NoError(t, err)
	_, err = router.Resolve(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, int64(2), store.lookups.Load())
}

func TestRouterResolve_FailuresAreNotCached(t *testing.T) {
	store := newCountingStore(7)
	store.err = registry.ErrUnavailable
	router := registry.NewRouter(store)
	ctx := context.Background()

	_, err := router.Resolve(ctx, 7)
	require.ErrorIs(t, err, registry.ErrUnavailable)

	store.err = nil
	d, err := router.Resolve(ctx, 7)
	require.NoError(t, err)
	assert.NotNil(t, d)
	assert.Equal(t, int64(2), store.lookups.Load(), "failed lookup retried on the next request")
}

func TestRouterResolve_UnknownTenant(t *testing.T) {
	store := newCountingStore()
	router := registry.NewRouter(store)

	_, err := router.Resolve(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrTenantNotFound))
}

func TestRouterInvalidate_ForcesFreshLookup(t *testing.T) {
	store := newCountingStore(7)
	router := registry.NewRouter(store)
	ctx := context.Background()

	old, err := router.Resolve(ctx, 7)
	require.NoError(t, err)

	store.mu.Lock()
	store.descs[7] = &registry.Descriptor{Host: "db-moved", Port: 5432, Database: "app", User: "u", Password: "p"}
	store.mu.Unlock()

	router.Invalidate(7)

	fresh, err := router.Resolve(ctx, 7)
	require.NoError(t, err)
	assert.NotSame(t, old, fresh)
	assert.Equal(t, "db-moved", fresh.Host)
	assert.Equal(t, int64(2), store.lookups.Load())
}

func TestDescriptorDSN_QuotesValues(t *testing.T) {
	d := &registry.Descriptor{
		Host:     "db.internal",
		Port:     5433,
		Database: "tenant one",
		User:     "svc",
		Password: `p'ss\word`,
	}
	dsn := d.DSN()
	assert.Contains(t, dsn, "host='db.internal'")
	assert.Contains(t, dsn, "port=5433")
	assert.Contains(t, dsn, "dbname='tenant one'")
	assert.Contains(t, dsn, `password='p\'ss\\word'`)
}

func TestDescriptorLogValue_RedactsPassword(t *testing.T) {
	d := &registry.Descriptor{Host: "h", Port: 1, Database: "d", User: "u", Password: "secret"}
	v := d.LogValue()
	assert.NotContains(t, v.String(), "secret")
}
