package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/stake-plus/base-buddies/src/challenge"
	"github.com/stake-plus/base-buddies/src/store"
)

var reconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bb_metadata_reconcile_total",
	Help: "Metadata lookups by outcome (cached, promoted, missing).",
}, []string{"outcome"})

// Reconciler resolves metadata against one store client. All
// read-modify-write cycles in a process go through mu.
type Reconciler struct {
	store store.Interface
	log   *zap.Logger
	mu    sync.Mutex
}

func New(s store.Interface, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{store: s, log: log.Named("reconcile")}
}

// Reconcile returns the metadata for rec, promoting a matching pending
// entry on first sight. Store problems read as "no metadata".
func (r *Reconciler) Reconcile(ctx context.Context, rec challenge.Record) (Metadata, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.load(ctx)
	if m, ok := st.Lookup(rec.ID); ok {
		reconcileTotal.WithLabelValues("cached").Inc()
		return m, true
	}
	i := st.Find(rec)
	if i < 0 {
		reconcileTotal.WithLabelValues("missing").Inc()
		return Metadata{}, false
	}

	// Another context may have written since the first read.
	st = r.load(ctx)
	if m, ok := st.Lookup(rec.ID); ok {
		reconcileTotal.WithLabelValues("cached").Inc()
		return m, true
	}
	if i = st.Find(rec); i < 0 {
		reconcileTotal.WithLabelValues("missing").Inc()
		return Metadata{}, false
	}
	meta := st.Pending[i].Metadata
	st = st.Promote(i, rec.ID)
	if err := r.save(ctx, st); err != nil {
		r.log.Warn("persist promoted metadata", zap.Uint64("id", rec.ID), zap.Error(err))
	}
	reconcileTotal.WithLabelValues("promoted").Inc()
	return meta, true
}

// Lookup returns promoted metadata without touching the pending list.
func (r *Reconciler) Lookup(ctx context.Context, id uint64) (Metadata, bool) {
	return r.load(ctx).Lookup(id)
}

// AddPending queues entry for the next matching record. Later duplicates
// are appended and only ever matched after earlier ones.
func (r *Reconciler) AddPending(ctx context.Context, entry PendingEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.load(ctx)
	st.Pending = append(st.Pending, entry)
	return r.writeJSON(ctx, PendingKey, st.Pending)
}

// Pending returns the queued entries, optionally for one creator.
func (r *Reconciler) Pending(ctx context.Context, creator string) []PendingEntry {
	st := r.load(ctx)
	if creator == "" {
		return st.Pending
	}
	var out []PendingEntry
	for _, e := range st.Pending {
		if strings.EqualFold(e.CreatorAddress, creator) {
			out = append(out, e)
		}
	}
	return out
}

// Forget drops the metadata of a deleted challenge.
func (r *Reconciler) Forget(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.load(ctx)
	if _, ok := st.ByID[idKey(id)]; !ok {
		return nil
	}
	delete(st.ByID, idKey(id))
	return r.writeJSON(ctx, ByIDKey, st.ByID)
}

func (r *Reconciler) load(ctx context.Context) State {
	st := State{ByID: map[string]Metadata{}}
	r.readJSON(ctx, PendingKey, &st.Pending)
	r.readJSON(ctx, ByIDKey, &st.ByID)
	if st.ByID == nil {
		st.ByID = map[string]Metadata{}
	}
	return st
}

func (r *Reconciler) readJSON(ctx context.Context, key string, dst any) {
	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.log.Warn("read metadata", zap.String("key", key), zap.Error(err))
		}
		return
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		r.log.Debug("discarding unreadable metadata", zap.String("key", key), zap.Error(err))
		switch d := dst.(type) {
		case *[]PendingEntry:
			*d = nil
		case *map[string]Metadata:
			*d = map[string]Metadata{}
		}
	}
}

func (r *Reconciler) save(ctx context.Context, st State) error {
	if err := r.writeJSON(ctx, PendingKey, st.Pending); err != nil {
		return err
	}
	return r.writeJSON(ctx, ByIDKey, st.ByID)
}

func (r *Reconciler) writeJSON(ctx context.Context, key string, v any) error {
	if pending, ok := v.([]PendingEntry); ok && pending == nil {
		v = []PendingEntry{}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, key, raw)
}
