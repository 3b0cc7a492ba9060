// Package bus tells independently refreshing views that a challenge
// changed. Events are refetch signals only; they carry no state.
//
// Publish writes a marker key to the shared store and then runs local
// handlers. Other clients of the same store learn about it through the
// store's change notifications.
package bus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/stake-plus/base-buddies/src/store"
)

type Kind string

const (
	Deleted   Kind = "deleted"
	Edited    Kind = "edited"
	Created   Kind = "created"
	Completed Kind = "completed"
	Refunded  Kind = "refunded"
)

var Kinds = []Kind{Deleted, Edited, Created, Completed, Refunded}

var ErrUnknownKind = errors.New("bus: unknown event kind")

var eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bb_bus_events_total",
	Help: "Invalidation events delivered, by kind and origin (local, remote).",
}, []string{"kind", "origin"})

// MarkerKey is the store key for kind.
func MarkerKey(k Kind) string { return "bb:challenge-" + string(k) + "-id" }

// Event says challenge ChallengeID changed in the way Kind describes.
type Event struct {
	Kind        Kind      `json:"kind"`
	ChallengeID uint64    `json:"challengeId"`
	At          time.Time `json:"at"`
	Remote      bool      `json:"remote"`
}

// Handler receives events. It runs on the publisher's goroutine for local
// events and on the store's notification goroutine for remote ones.
type Handler func(Event)

type Bus struct {
	store store.Interface
	log   *zap.Logger

	mu       sync.RWMutex
	handlers map[uint64]Handler
	nextID   uint64
}

func New(s store.Interface, log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{store: s, log: log.Named("bus"), handlers: map[uint64]Handler{}}
}

// Start listens for markers written by other clients until ctx is done.
func (b *Bus) Start(ctx context.Context) error {
	return b.store.Watch(ctx, b.onChange)
}

// Publish records the marker and notifies local handlers.
func (b *Bus) Publish(ctx context.Context, kind Kind, id uint64) error {
	if !known(kind) {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	now := time.Now()
	if err := b.store.Set(ctx, MarkerKey(kind), []byte(FormatMarker(id, now))); err != nil {
		b.log.Warn("write marker", zap.String("kind", string(kind)), zap.Uint64("id", id), zap.Error(err))
	}
	b.dispatch(Event{Kind: kind, ChallengeID: id, At: now.Truncate(time.Millisecond)})
	return nil
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) onChange(c store.Change) {
	if c.Deleted {
		return
	}
	kind, ok := kindForKey(c.Key)
	if !ok {
		return
	}
	id, at, err := ParseMarker(string(c.Value))
	if err != nil {
		b.log.Debug("dropping malformed marker", zap.String("key", c.Key), zap.Error(err))
		return
	}
	b.dispatch(Event{Kind: kind, ChallengeID: id, At: at, Remote: true})
}

func (b *Bus) dispatch(ev Event) {
	origin := "local"
	if ev.Remote {
		origin = "remote"
	}
	eventsTotal.WithLabelValues(string(ev.Kind), origin).Inc()

	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(ev)
	}
}

// FormatMarker renders "{id}:{unixMillis}".
func FormatMarker(id uint64, at time.Time) string {
	return strconv.FormatUint(id, 10) + ":" + strconv.FormatInt(at.UnixMilli(), 10)
}

// ParseMarker is the inverse of FormatMarker.
func ParseMarker(s string) (uint64, time.Time, error) {
	idPart, msPart, ok := strings.Cut(s, ":")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("marker %q: missing separator", s)
	}
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("marker %q: id: %w", s, err)
	}
	ms, err := strconv.ParseInt(msPart, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("marker %q: timestamp: %w", s, err)
	}
	return id, time.UnixMilli(ms), nil
}

func known(k Kind) bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

func kindForKey(key string) (Kind, bool) {
	for _, k := range Kinds {
		if MarkerKey(k) == key {
			return k, true
		}
	}
	return "", false
}
