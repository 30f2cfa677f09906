// ===========================================
// Package limiter - Sliding-Window Rate Limiting
// ===========================================
// Counts requests per client identity in a rolling window backed by
// a TTL-bound counter store. The identity is hashed before it is
// used as a key, so raw IPs are never stored.
// ===========================================

package limiter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// keyNamespace prefixes every counter key so limiter entries can't
// collide with cache entries in the same Redis database.
const keyNamespace = "ratelimit"

// ErrEmptyIdentity is returned when ShouldLimit is called without an
// identity value. A missing identity is a caller bug, never a
// silent allow.
var ErrEmptyIdentity = errors.New("identity value must be provided")

// CounterStore is the key/value counter backend. Implemented by
// database.RedisDB; faked in tests.
type CounterStore interface {
	GetCount(ctx context.Context, key string) (int64, error)
	IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Limiter is a sliding-window request counter.
type Limiter struct {
	store       CounterStore
	window      time.Duration
	maxRequests int
}

// New creates a limiter with window W and budget N.
func New(store CounterStore, window time.Duration, maxRequests int) *Limiter {
	return &Limiter{
		store:       store,
		window:      window,
		maxRequests: maxRequests,
	}
}

// ShouldLimit reports whether the identity is over budget.
//
// A rejected request does not increment the counter, so hammering a
// limited endpoint never extends the current window. An allowed
// request increments and refreshes the TTL in one atomic pipeline.
func (l *Limiter) ShouldLimit(ctx context.Context, value string) (bool, error) {
	if value == "" {
		return false, ErrEmptyIdentity
	}

	key := hashKey(value)

	count, err := l.store.GetCount(ctx, key)
	if err != nil {
		return false, fmt.Errorf("rate limit read failed: %w", err)
	}
	if count >= int64(l.maxRequests) {
		return true, nil
	}

	if _, err := l.store.IncrementWithTTL(ctx, key, l.window); err != nil {
		return false, fmt.Errorf("rate limit increment failed: %w", err)
	}

	return false, nil
}

// hashKey derives the namespaced storage key for an identity.
func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return keyNamespace + "_" + hex.EncodeToString(sum[:])
}
