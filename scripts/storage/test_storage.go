package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/stake-plus/base-buddies/src/bus"
	"github.com/stake-plus/base-buddies/src/data"
	"github.com/stake-plus/base-buddies/src/store"

	_ "github.com/stake-plus/base-buddies/src/store/redisstore"
	_ "github.com/stake-plus/base-buddies/src/store/sqlstore"
)

// Opens the configured store twice and checks that an invalidation
// published by one client reaches the other.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	opts := store.Options{
		Backend:      "redis",
		RedisURL:     os.Getenv("REDIS_URL"),
		PollInterval: 500 * time.Millisecond,
	}
	if dsn := os.Getenv("MYSQL_DSN"); dsn != "" && opts.RedisURL == "" {
		opts.Backend = "mysql"
		opts.DB = data.MustMySQL(dsn)
	}

	a, err := store.Open(ctx, opts)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer a.Close()
	b, err := store.Open(ctx, opts)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer b.Close()

	busA, busB := bus.New(a, nil), bus.New(b, nil)
	if err := busB.Start(ctx); err != nil {
		log.Fatalf("watch: %v", err)
	}
	got := make(chan bus.Event, 1)
	defer busB.Subscribe(func(ev bus.Event) {
		select {
		case got <- ev:
		default:
		}
	})()

	if err := busA.Publish(ctx, bus.Edited, 1670); err != nil {
		log.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-got:
		log.Printf("%s backend: challenge %d %s (remote=%v)", opts.Backend, ev.ChallengeID, ev.Kind, ev.Remote)
	case <-ctx.Done():
		log.Fatalf("%s backend: no event received", opts.Backend)
	}
}
