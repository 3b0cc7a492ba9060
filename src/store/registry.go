package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Options carries what any backend may need. Backends ignore the fields
// they do not use.
type Options struct {
	Backend      string
	RedisURL     string
	DB           *gorm.DB
	PollInterval time.Duration
}

type Factory interface {
	Build(ctx context.Context, opts Options) (Interface, error)
}

var (
	registry = map[string]Factory{}
	regLock  sync.RWMutex
)

func Register(name string, factory Factory) {
	regLock.Lock()
	defer regLock.Unlock()

	registry[name] = factory
}

func Get(name string) (Factory, bool) {
	regLock.RLock()
	defer regLock.RUnlock()
	f, ok := registry[name]
	return f, ok
}

func Backends() []string {
	regLock.RLock()
	defer regLock.RUnlock()
	var out []string
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Open builds the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Interface, error) {
	f, ok := Get(opts.Backend)
	if !ok {
		return nil, fmt.Errorf("store: unknown backend %q (have %v)", opts.Backend, Backends())
	}
	s, err := f.Build(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", opts.Backend, err)
	}
	return s, nil
}
