// Package redisstore keeps the shared store in Redis and fans out change
// notifications over pub/sub so other instances can refetch.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/base-buddies/src/store"
)

// Channel carries one message per write.
const Channel = "bb:store-changes"

var (
	ErrNoURL  = errors.New("redisstore: no URL defined")
	ErrBadURL = errors.New("redisstore: URL is invalid")
)

func init() {
	store.Register("redis", Factory{})
}

type Factory struct{}

func (Factory) Build(ctx context.Context, opts store.Options) (store.Interface, error) {
	if opts.RedisURL == "" {
		return nil, ErrNoURL
	}
	ropts, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadURL, err)
	}
	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping failed: %w", err)
	}
	s := New(client)
	s.owned = true
	return s, nil
}

type message struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
	Origin  string `json:"origin"`
}

// Store implements store.Interface on top of Redis.
type Store struct {
	client *redis.Client
	origin string
	owned  bool
}

var _ store.Interface = (*Store)(nil)

// New wraps an existing client. Close leaves the client open.
func New(client *redis.Client) *Store {
	return &Store{client: client, origin: uuid.NewString()}
}

func (s *Store) Origin() string { return s.origin }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}
		return nil, err
	}
	return b, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	payload, err := json.Marshal(message{Key: key, Value: string(value), Origin: s.origin})
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, value, 0)
		p.Publish(ctx, Channel, payload)
		return nil
	})
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}
	payload, err := json.Marshal(message{Key: key, Deleted: true, Origin: s.origin})
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, Channel, payload).Err()
}

func (s *Store) Watch(ctx context.Context, fn func(store.Change)) error {
	sub := s.client.Subscribe(ctx, Channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redisstore: subscribe: %w", err)
	}
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var m message
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
					continue
				}
				if m.Origin == s.origin {
					continue
				}
				fn(store.Change{Key: m.Key, Value: []byte(m.Value), Deleted: m.Deleted, Origin: m.Origin})
			}
		}
	}()
	return nil
}

func (s *Store) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
