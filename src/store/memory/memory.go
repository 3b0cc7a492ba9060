// Package memory is an in-process store. One Backend stands in for a
// shared storage area; each Client is one context writing to it.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/stake-plus/base-buddies/src/store"
)

func init() {
	store.Register("memory", Factory{})
}

type Factory struct{}

func (Factory) Build(context.Context, store.Options) (store.Interface, error) {
	return New().Client(), nil
}

type watcher struct {
	origin string
	fn     func(store.Change)
}

type Backend struct {
	mu       sync.Mutex
	data     map[string][]byte
	watchers map[uint64]watcher
	nextID   uint64
}

func New() *Backend {
	return &Backend{
		data:     map[string][]byte{},
		watchers: map[uint64]watcher{},
	}
}

// Client returns a new client with its own origin.
func (b *Backend) Client() *Client {
	return &Client{b: b, origin: uuid.NewString()}
}

// Client implements store.Interface over a shared Backend.
type Client struct {
	b      *Backend
	origin string
}

var _ store.Interface = (*Client)(nil)

func (c *Client) Origin() string { return c.origin }

func (c *Client) Get(_ context.Context, key string) ([]byte, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	v, ok := c.b.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}
	return append([]byte(nil), v...), nil
}

func (c *Client) Set(_ context.Context, key string, value []byte) error {
	c.b.mu.Lock()
	c.b.data[key] = append([]byte(nil), value...)
	targets := c.b.othersLocked(c.origin)
	c.b.mu.Unlock()

	c.notify(targets, store.Change{Key: key, Value: value})
	return nil
}

func (c *Client) Delete(_ context.Context, key string) error {
	c.b.mu.Lock()
	if _, ok := c.b.data[key]; !ok {
		c.b.mu.Unlock()
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}
	delete(c.b.data, key)
	targets := c.b.othersLocked(c.origin)
	c.b.mu.Unlock()

	c.notify(targets, store.Change{Key: key, Deleted: true})
	return nil
}

// Watch registers fn until ctx is done. Notifications run synchronously on
// the writer's goroutine, after the write is visible.
func (c *Client) Watch(ctx context.Context, fn func(store.Change)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.b.mu.Lock()
	id := c.b.nextID
	c.b.nextID++
	c.b.watchers[id] = watcher{origin: c.origin, fn: fn}
	c.b.mu.Unlock()

	context.AfterFunc(ctx, func() {
		c.b.mu.Lock()
		delete(c.b.watchers, id)
		c.b.mu.Unlock()
	})
	return nil
}

func (c *Client) Close() error { return nil }

func (c *Client) notify(targets []func(store.Change), ch store.Change) {
	ch.Origin = c.origin
	for _, fn := range targets {
		v := ch
		v.Value = append([]byte(nil), ch.Value...)
		fn(v)
	}
}

func (b *Backend) othersLocked(origin string) []func(store.Change) {
	var out []func(store.Change)
	for _, w := range b.watchers {
		if w.origin != origin {
			out = append(out, w.fn)
		}
	}
	return out
}
