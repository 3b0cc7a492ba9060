package data

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/base-buddies/src/store"
)

const (
	noncePrefix = "nonce:"
	NonceTTL    = 5 * time.Minute
)

var ErrNoNonce = errors.New("nonce missing or expired")

// Nonces holds sign-in challenges keyed by wallet address. Take removes
// the nonce so it can only be used once.
type Nonces interface {
	Put(ctx context.Context, addr, nonce string) error
	Take(ctx context.Context, addr string) (string, error)
}

func nonceKey(addr string) string { return noncePrefix + strings.ToLower(addr) }

// RedisNonces keeps nonces in Redis with a TTL.
type RedisNonces struct {
	Rdb *redis.Client
}

func (n RedisNonces) Put(ctx context.Context, addr, nonce string) error {
	return n.Rdb.Set(ctx, nonceKey(addr), nonce, NonceTTL).Err()
}

func (n RedisNonces) Take(ctx context.Context, addr string) (string, error) {
	v, err := n.Rdb.GetDel(ctx, nonceKey(addr)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoNonce
	}
	return v, err
}

// StoreNonces keeps nonces in the shared store, for deployments without
// Redis. Expiry is checked on Take.
type StoreNonces struct {
	Store store.Interface
	Now   func() time.Time
}

type storedNonce struct {
	Nonce    string    `json:"nonce"`
	IssuedAt time.Time `json:"issuedAt"`
}

func (n StoreNonces) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

func (n StoreNonces) Put(ctx context.Context, addr, nonce string) error {
	raw, err := json.Marshal(storedNonce{Nonce: nonce, IssuedAt: n.now()})
	if err != nil {
		return err
	}
	return n.Store.Set(ctx, nonceKey(addr), raw)
}

func (n StoreNonces) Take(ctx context.Context, addr string) (string, error) {
	raw, err := n.Store.Get(ctx, nonceKey(addr))
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNoNonce
	}
	if err != nil {
		return "", err
	}
	_ = n.Store.Delete(ctx, nonceKey(addr))

	var sn storedNonce
	if err := json.Unmarshal(raw, &sn); err != nil {
		return "", ErrNoNonce
	}
	if n.now().Sub(sn.IssuedAt) > NonceTTL {
		return "", ErrNoNonce
	}
	return sn.Nonce, nil
}
