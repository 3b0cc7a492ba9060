// Package refresh keeps the latest challenge snapshot in memory. It
// refetches on new blocks, on a timer and whenever the bus says something
// changed. Views are built from the snapshot on every read so status and
// time-left follow the clock.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/stake-plus/base-buddies/src/actions/core"
	"github.com/stake-plus/base-buddies/src/bus"
	"github.com/stake-plus/base-buddies/src/challenge"
	"github.com/stake-plus/base-buddies/src/service"
)

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bb_refresh_total",
		Help: "Snapshot refreshes by result.",
	}, []string{"result"})
	refreshSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bb_refresh_duration_seconds",
		Help:    "Time spent reading the contract and reconciling metadata.",
		Buckets: prometheus.DefBuckets,
	})
	snapshotSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bb_snapshot_challenges",
		Help: "Valid challenges in the current snapshot.",
	})
)

type Source interface {
	Entries(ctx context.Context) ([]service.Entry, error)
	Builder() challenge.Builder
	Now() time.Time
}

type Heads interface {
	Run(ctx context.Context, fn func(block uint64))
}

type Subscriber interface {
	Subscribe(h bus.Handler) (cancel func())
}

var _ core.Module = (*Module)(nil)

type Module struct {
	src      Source
	heads    Heads
	bus      Subscriber
	interval time.Duration
	log      *zap.Logger

	mu      sync.RWMutex
	entries []service.Entry
	updated time.Time

	kick   chan struct{}
	cancel context.CancelFunc
	unsub  func()
	wg     sync.WaitGroup
}

// NewModule builds the module. heads and sub may be nil.
func NewModule(src Source, heads Heads, sub Subscriber, interval time.Duration, log *zap.Logger) *Module {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Module{
		src:      src,
		heads:    heads,
		bus:      sub,
		interval: interval,
		log:      log.Named("refresh"),
		kick:     make(chan struct{}, 1),
	}
}

func (m *Module) Name() string { return "refresh" }

func (m *Module) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if err := m.Refresh(runCtx); err != nil {
		m.log.Warn("initial refresh failed", zap.Error(err))
	}
	if m.bus != nil {
		m.unsub = m.bus.Subscribe(func(bus.Event) { m.Kick() })
	}
	if m.heads != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.heads.Run(runCtx, func(uint64) { m.Kick() })
		}()
	}

	m.wg.Add(1)
	go m.loop(runCtx)
	return nil
}

func (m *Module) Stop(context.Context) {
	if m.unsub != nil {
		m.unsub()
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// Kick asks for a refresh soon. Kicks while one is queued coalesce.
func (m *Module) Kick() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

func (m *Module) loop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-m.kick:
		}
		if err := m.Refresh(ctx); err != nil && ctx.Err() == nil {
			m.log.Warn("refresh failed", zap.Error(err))
		}
	}
}

// Refresh replaces the snapshot. On failure the previous one is kept.
func (m *Module) Refresh(ctx context.Context) error {
	start := time.Now()
	entries, err := m.src.Entries(ctx)
	refreshSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		refreshTotal.WithLabelValues("error").Inc()
		return err
	}
	refreshTotal.WithLabelValues("ok").Inc()
	snapshotSize.Set(float64(len(entries)))

	m.mu.Lock()
	m.entries = entries
	m.updated = time.Now()
	m.mu.Unlock()
	return nil
}

// Updated is when the snapshot was last replaced.
func (m *Module) Updated() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updated
}

// List builds views from the snapshot. Before the first successful
// refresh it reads through.
func (m *Module) List(ctx context.Context, q challenge.Query) ([]challenge.View, error) {
	if m.Updated().IsZero() {
		if err := m.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	m.mu.RLock()
	entries := m.entries
	m.mu.RUnlock()

	b := m.src.Builder()
	now := m.src.Now().Unix()
	views := make([]challenge.View, 0, len(entries))
	for _, e := range entries {
		views = append(views, b.Build(e.Record, e.Meta, now))
	}
	return q.Apply(views), nil
}
