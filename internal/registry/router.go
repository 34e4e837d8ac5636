package registry

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Router maps tenant ids to cached connection descriptors.
//
// Cache hits take only a read lock. The first resolution of an unseen
// tenant id is deduplicated through singleflight, so concurrent callers
// share one registry lookup and observe the same descriptor. Failed
// lookups are not cached — the next request retries the registry.
type Router struct {
	store Store

	mu    sync.RWMutex
	cache map[int64]*Descriptor

	group singleflight.Group
}

// NewRouter creates a router over the given store. The router is
// constructed once at process start and torn down with the process;
// it owns no goroutines.
func NewRouter(store Store) *Router {
	return &Router{
		store: store,
		cache: make(map[int64]*Descriptor),
	}
}

// Resolve returns the connection descriptor for tenantID, performing a
// registry lookup on first use and serving from cache afterwards.
func (r *Router) Resolve(ctx context.Context, tenantID int64) (*Descriptor, error) {
	r.mu.RLock()
	d, ok := r.cache[tenantID]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	// singleflight reuses the first caller's context for the whole
	// group; detach cancellation so one canceled caller cannot fail
	// every waiter sharing the lookup.
	lookupCtx := context.WithoutCancel(ctx)

	v, err, _ := r.group.Do(strconv.FormatInt(tenantID, 10), func() (any, error) {
		// A previous flight may have populated the cache between the
		// read above and entering the group.
		r.mu.RLock()
		d, ok := r.cache[tenantID]
		r.mu.RUnlock()
		if ok {
			return d, nil
		}

		d, err := r.store.Lookup(lookupCtx, tenantID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[tenantID] = d
		r.mu.Unlock()
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Descriptor), nil
}

// Invalidate drops the cache entry for tenantID, if any. The next
// Resolve performs a fresh registry lookup and inserts a new entry;
// existing holders of the old descriptor keep their snapshot.
func (r *Router) Invalidate(tenantID int64) {
	r.mu.Lock()
	delete(r.cache, tenantID)
	r.mu.Unlock()
}
