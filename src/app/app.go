// Package app assembles the components both binaries run on.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stake-plus/base-buddies/src/bus"
	"github.com/stake-plus/base-buddies/src/chain"
	"github.com/stake-plus/base-buddies/src/config"
	"github.com/stake-plus/base-buddies/src/data"
	"github.com/stake-plus/base-buddies/src/metadata"
	"github.com/stake-plus/base-buddies/src/service"
	"github.com/stake-plus/base-buddies/src/store"

	_ "github.com/stake-plus/base-buddies/src/store/memory"
	_ "github.com/stake-plus/base-buddies/src/store/redisstore"
	_ "github.com/stake-plus/base-buddies/src/store/sqlstore"
)

type App struct {
	Config   config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Redis    *redis.Client
	Store    store.Interface
	Chain    *chain.Client
	Metadata *metadata.Reconciler
	Bus      *bus.Bus
	Service  *service.Service
	Nonces   data.Nonces
}

// Open connects to the store and the chain and starts the bus. db may be
// nil. Close releases everything Open acquired.
func Open(ctx context.Context, cfg config.Config, db *gorm.DB, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Config: cfg, Log: log, DB: db}

	st, err := store.Open(ctx, store.Options{
		Backend:      cfg.StoreBackend,
		RedisURL:     cfg.RedisURL,
		DB:           db,
		PollInterval: cfg.StorePoll,
	})
	if err != nil {
		return nil, err
	}
	a.Store = st
	log.Info("store opened", zap.String("backend", cfg.StoreBackend), zap.String("origin", st.Origin()))

	if cfg.RedisURL != "" {
		a.Redis = data.MustRedis(cfg.RedisURL)
		a.Nonces = data.RedisNonces{Rdb: a.Redis}
	} else {
		a.Nonces = data.StoreNonces{Store: st}
	}

	a.Chain, err = chain.Dial(ctx, chain.Config{
		RPCURL:     cfg.Chain.RPCURL,
		Contract:   cfg.Chain.Contract,
		PrivateKey: cfg.Chain.PrivateKey,
		ChainID:    cfg.Chain.ChainID,
	}, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	a.Metadata = metadata.New(st, log)
	a.Bus = bus.New(st, log)
	if err := a.Bus.Start(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("app: start bus: %w", err)
	}
	a.Service = service.New(a.Chain, a.Chain, a.Metadata, a.Bus, service.Options{
		Symbol: cfg.CurrencySymbol,
		Log:    log,
		Encode: chain.Pack,
	})
	return a, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Chain != nil {
		a.Chain.Close()
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}
