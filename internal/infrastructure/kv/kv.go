// Package kv defines the key-value storage contract shared by the config and
// submission repositories, plus an in-memory implementation.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// Store is a minimal key-value store. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
