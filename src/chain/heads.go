package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

type HeaderSource interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// HeadWatcher polls the latest block number and reports increases.
type HeadWatcher struct {
	src      HeaderSource
	interval time.Duration
	log      *zap.Logger
	last     uint64
}

func NewHeadWatcher(src HeaderSource, interval time.Duration, log *zap.Logger) *HeadWatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 12 * time.Second
	}
	return &HeadWatcher{src: src, interval: interval, log: log.Named("heads")}
}

// Heads watches the client's backend.
func (c *Client) Heads(interval time.Duration) *HeadWatcher {
	return NewHeadWatcher(c.backend, interval, c.log)
}

// Run calls fn with each new block number until ctx is done. The first
// poll only records the starting block.
func (w *HeadWatcher) Run(ctx context.Context, fn func(block uint64)) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll(ctx, nil)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx, fn)
		}
	}
}

func (w *HeadWatcher) poll(ctx context.Context, fn func(uint64)) {
	h, err := w.src.HeaderByNumber(ctx, nil)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("failed to get latest block", zap.Error(err))
		}
		return
	}
	n := h.Number.Uint64()
	if n <= w.last {
		return
	}
	first := w.last == 0
	w.last = n
	if !first && fn != nil {
		fn(n)
	}
}
