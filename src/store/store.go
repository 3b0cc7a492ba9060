// Package store is the durable key-value layer shared by the metadata
// cache and the invalidation bus. Every client has an origin; Watch only
// reports changes written by other origins.
package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("store: key not found")

// Change is one write seen by a watcher.
type Change struct {
	Key     string
	Value   []byte
	Deleted bool
	Origin  string
}

type Interface interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Watch calls fn for every change made through another client until
	// ctx is done. It returns once the watch is established.
	Watch(ctx context.Context, fn func(Change)) error

	// Origin identifies this client's own writes.
	Origin() string
	Close() error
}
