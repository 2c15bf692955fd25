// Package cache persists compressed session payloads keyed by session id.
package cache

import (
	"context"
	"errors"
)

var (
	// ErrMiss is returned by Get for absent keys.
	ErrMiss = errors.New("cache miss")
	// ErrQuotaExceeded is returned by Set when the storage has no room left.
	ErrQuotaExceeded = errors.New("cache quota exceeded")
)

// Storage is a flat byte key/value store.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}
