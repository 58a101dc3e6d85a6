// Package db defines the key-value and list storage contracts used by the
// session transcript store and the embedding cache.
package db

import (
	"context"
	"time"
)

// Store is the database facade. Consumers depend on the narrow sub-interfaces.
type Store interface {
	Pinger
	KVStore
	ListStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// ListStore provides append-only list operations.
type ListStore interface {
	// RPush appends values in order; a ttl > 0 refreshes the key expiry in
	// the same round trip.
	RPush(ctx context.Context, key string, ttl time.Duration, values ...[]byte) error
	// LRange returns elements start..stop inclusive; negative indexes count from the end.
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
}
