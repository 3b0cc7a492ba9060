// Package service is the challenge read/write flow: contract rows go
// through the validity filter, pick up reconciled metadata and become
// views; writes are validated, shaped, submitted, awaited and announced
// on the bus.
package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/stake-plus/base-buddies/src/bus"
	"github.com/stake-plus/base-buddies/src/challenge"
	"github.com/stake-plus/base-buddies/src/metadata"
)

var ErrNotFound = errors.New("challenge not found")

// Reader is the contract's read side.
type Reader interface {
	All(ctx context.Context) ([]challenge.RawRecord, error)
	Get(ctx context.Context, id uint64) (challenge.RawRecord, error)
	CreatedBy(ctx context.Context, user string) ([]challenge.RawRecord, error)
	CompletedBy(ctx context.Context, user string) ([]uint64, error)
}

// Writer sends signed calls and waits for them. Transaction reads back
// what a hash actually called, whoever sent it.
type Writer interface {
	Submit(ctx context.Context, call challenge.Call) (string, error)
	Await(ctx context.Context, hash string) (challenge.Receipt, error)
	Transaction(ctx context.Context, hash string) (challenge.SentTx, error)
}

type MetadataStore interface {
	Reconcile(ctx context.Context, rec challenge.Record) (metadata.Metadata, bool)
	AddPending(ctx context.Context, entry metadata.PendingEntry) error
	Pending(ctx context.Context, creator string) []metadata.PendingEntry
	Forget(ctx context.Context, id uint64) error
}

type Publisher interface {
	Publish(ctx context.Context, kind bus.Kind, id uint64) error
}

type Options struct {
	Symbol string
	Now    func() time.Time
	Log    *zap.Logger
	// Encode packs a call into calldata. Prepared calls carry the result
	// in Call.Input; nil leaves Input empty.
	Encode func(challenge.Call) ([]byte, error)
}

type Service struct {
	reader Reader
	writer Writer
	meta   MetadataStore
	bus    Publisher
	views  challenge.Builder
	now    func() time.Time
	log    *zap.Logger
	policy *bluemonday.Policy
	encode func(challenge.Call) ([]byte, error)
}

// New wires a service. writer may be nil for read-only use.
func New(r Reader, w Writer, meta MetadataStore, pub Publisher, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Service{
		reader: r,
		writer: w,
		meta:   meta,
		bus:    pub,
		views:  challenge.Builder{Symbol: opts.Symbol},
		now:    opts.Now,
		log:    opts.Log.Named("service"),
		policy: bluemonday.StrictPolicy(),
		encode: opts.Encode,
	}
}

// Builder is the view builder in use.
func (s *Service) Builder() challenge.Builder { return s.views }

// Now is the service clock.
func (s *Service) Now() time.Time { return s.now() }

// List returns every valid challenge as a view, filtered and ordered by q.
func (s *Service) List(ctx context.Context, q challenge.Query) ([]challenge.View, error) {
	raws, err := s.reader.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	return q.Apply(s.Views(ctx, challenge.FilterValid(raws))), nil
}

// Views reconciles metadata for recs and builds their views.
func (s *Service) Views(ctx context.Context, recs []challenge.Record) []challenge.View {
	now := s.now().Unix()
	out := make([]challenge.View, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.view(ctx, rec, now))
	}
	return out
}

func (s *Service) view(ctx context.Context, rec challenge.Record, now int64) challenge.View {
	if meta, ok := s.meta.Reconcile(ctx, rec); ok {
		return s.views.Build(rec, &meta, now)
	}
	return s.views.Build(rec, nil, now)
}

// Entry is a valid record with whatever metadata it reconciled to.
type Entry struct {
	Record challenge.Record
	Meta   *metadata.Metadata
}

// Entries reads every valid record and its metadata without building
// views, so callers can derive time-dependent fields later.
func (s *Service) Entries(ctx context.Context) ([]Entry, error) {
	raws, err := s.reader.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	recs := challenge.FilterValid(raws)
	out := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		e := Entry{Record: rec}
		if meta, ok := s.meta.Reconcile(ctx, rec); ok {
			e.Meta = &meta
		}
		out = append(out, e)
	}
	return out, nil
}

// Record fetches one valid record.
func (s *Service) Record(ctx context.Context, id uint64) (challenge.Record, error) {
	raw, err := s.reader.Get(ctx, id)
	if err != nil {
		return challenge.Record{}, fmt.Errorf("get challenge %d: %w", id, err)
	}
	rec, ok := challenge.ValidRecord(raw)
	if !ok {
		return challenge.Record{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id uint64) (challenge.View, error) {
	rec, err := s.Record(ctx, id)
	if err != nil {
		return challenge.View{}, err
	}
	return s.view(ctx, rec, s.now().Unix()), nil
}

// Dashboard aggregates what address created and completed. Completed
// challenges come back from the contract as ids and are read one by one.
func (s *Service) Dashboard(ctx context.Context, address string) (challenge.Dashboard, error) {
	created, err := s.reader.CreatedBy(ctx, address)
	if err != nil {
		return challenge.Dashboard{}, fmt.Errorf("created by %s: %w", address, err)
	}
	ids, err := s.reader.CompletedBy(ctx, address)
	if err != nil {
		return challenge.Dashboard{}, fmt.Errorf("completed by %s: %w", address, err)
	}
	completed := make([]challenge.RawRecord, 0, len(ids))
	for _, id := range ids {
		raw, err := s.reader.Get(ctx, id)
		if err != nil {
			return challenge.Dashboard{}, fmt.Errorf("get challenge %d: %w", id, err)
		}
		completed = append(completed, raw)
	}
	d := s.views.BuildDashboard(address,
		s.Views(ctx, challenge.FilterValid(created)),
		s.Views(ctx, challenge.FilterValid(completed)),
	)
	d.PendingCreates = len(s.meta.Pending(ctx, address))
	return d, nil
}

func (s *Service) clean(v string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(v)))
}
