package refresh

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stake-plus/base-buddies/src/bus"
	"github.com/stake-plus/base-buddies/src/challenge"
	"github.com/stake-plus/base-buddies/src/service"
	"github.com/stake-plus/base-buddies/src/store/memory"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	err   error
	now   time.Time
}

func (f *fakeSource) Entries(context.Context) ([]service.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	rec := challenge.Record{ID: uint64(f.calls), Title: "t", Reward: big.NewInt(1), Deadline: 10_000, MaxParticipants: 2}
	return []service.Entry{{Record: rec, Meta: &challenge.Metadata{Category: "Tech"}}}, nil
}

func (f *fakeSource) Builder() challenge.Builder { return challenge.Builder{Symbol: "ETH"} }

func (f *fakeSource) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeHeads struct{ blocks chan uint64 }

func (h fakeHeads) Run(ctx context.Context, fn func(uint64)) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-h.blocks:
			fn(b)
		}
	}
}

func TestRefreshTriggers(t *testing.T) {
	defer goleak.VerifyNone(t)
	src := &fakeSource{now: time.Unix(9_000, 0)}
	heads := fakeHeads{blocks: make(chan uint64)}
	b := bus.New(memory.New().Client(), nil)
	m := NewModule(src, heads, b, time.Hour, nil)

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop(context.Background())
	assert.Equal(t, 1, src.count())

	heads.blocks <- 100
	assert.Eventually(t, func() bool { return src.count() >= 2 }, time.Second, time.Millisecond)

	require.NoError(t, b.Publish(context.Background(), bus.Edited, 1))
	assert.Eventually(t, func() bool { return src.count() >= 3 }, time.Second, time.Millisecond)
}

func TestListBuildsAtReadTime(t *testing.T) {
	src := &fakeSource{now: time.Unix(9_000, 0)}
	m := NewModule(src, nil, nil, time.Hour, nil)

	views, err := m.List(context.Background(), challenge.Query{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, challenge.StatusActive, views[0].Status)
	assert.Equal(t, "Tech", views[0].Category)

	src.mu.Lock()
	src.now = time.Unix(20_000, 0)
	src.mu.Unlock()
	views, err = m.List(context.Background(), challenge.Query{})
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusRefundable, views[0].Status)
	assert.Equal(t, 1, src.count(), "reads do not refetch once a snapshot exists")
}

func TestFailedRefreshKeepsSnapshot(t *testing.T) {
	src := &fakeSource{now: time.Unix(9_000, 0)}
	m := NewModule(src, nil, nil, time.Hour, nil)
	require.NoError(t, m.Refresh(context.Background()))

	src.mu.Lock()
	src.err = errors.New("rpc down")
	src.mu.Unlock()
	assert.Error(t, m.Refresh(context.Background()))

	views, err := m.List(context.Background(), challenge.Query{})
	require.NoError(t, err)
	assert.Len(t, views, 1)
}
