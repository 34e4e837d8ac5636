// Package ratelimit provides a pluggable rate limiting interface.
//
// The gateway keys limits by tenant id (one bucket per appId), so a
// single noisy tenant cannot starve the others. The in-memory token
// bucket is the default; the Limiter interface is the contract for
// substituting a shared store in multi-instance deployments.
package ratelimit

import "context"

// Limiter decides whether a request identified by key should be allowed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow returns true if the request should proceed. The key is
	// opaque — callers construct it (e.g. "app:42"). An error signals
	// a limiter malfunction; callers should fail open rather than
	// blocking traffic.
	Allow(ctx context.Context, key string) (bool, error)

	// Close releases resources (cleanup goroutines, connections).
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always returns true.
func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
