package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/base-buddies/src/bus"
	"github.com/stake-plus/base-buddies/src/challenge"
	"github.com/stake-plus/base-buddies/src/metadata"
	"github.com/stake-plus/base-buddies/src/store/memory"
)

const creator = "0x00000000000000000000000000000000000000Aa"

var now = time.Unix(1_700_000_000, 0)

type fakeChain struct {
	mu        sync.Mutex
	rows      []challenge.RawRecord
	calls     []challenge.Call
	completed []uint64
	sent      map[string]challenge.SentTx
	submitErr error
	nextID    uint64
	// keepDeleted leaves rows in place when a delete is mined.
	keepDeleted bool
}

func (f *fakeChain) All(context.Context) ([]challenge.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]challenge.RawRecord(nil), f.rows...), nil
}

func (f *fakeChain) Get(_ context.Context, id uint64) (challenge.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID.Uint64() == id {
			return r, nil
		}
	}
	return challenge.RawRecord{ID: new(big.Int), Deadline: new(big.Int), MaxParticipants: new(big.Int), CurrentParticipants: new(big.Int)}, nil
}

func (f *fakeChain) CreatedBy(ctx context.Context, user string) ([]challenge.RawRecord, error) {
	all, _ := f.All(ctx)
	var out []challenge.RawRecord
	for _, r := range all {
		if strings.EqualFold(r.CreatorAddress, user) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeChain) CompletedBy(context.Context, string) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.completed...), nil
}

// Submit mines immediately: a create appends a row built from the call
// and a delete removes its row.
func (f *fakeChain) Submit(_ context.Context, call challenge.Call) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.calls = append(f.calls, call)
	hash := fmt.Sprintf("0xhash%d", len(f.calls))
	tx := challenge.SentTx{Hash: hash, From: creator, Method: call.Method}
	if call.Method != challenge.MethodCreate {
		tx.ChallengeID = call.Args[0].(*big.Int).Uint64()
	}
	if f.sent == nil {
		f.sent = map[string]challenge.SentTx{}
	}
	f.sent[hash] = tx
	if call.Method == challenge.MethodDelete && !f.keepDeleted {
		kept := f.rows[:0]
		for _, r := range f.rows {
			if r.ID.Uint64() != tx.ChallengeID {
				kept = append(kept, r)
			}
		}
		f.rows = kept
	}
	if call.Method == challenge.MethodCreate {
		f.nextID++
		f.rows = append(f.rows, challenge.RawRecord{
			ID:                  new(big.Int).SetUint64(f.nextID),
			Title:               call.Args[0].(string),
			Description:         call.Args[1].(string),
			CreatorNickname:     call.Args[2].(string),
			CreatorAddress:      strings.ToLower(creator),
			Reward:              call.Args[3].(*big.Int),
			Deadline:            call.Args[4].(*big.Int),
			MaxParticipants:     call.Args[5].(*big.Int),
			CurrentParticipants: new(big.Int),
		})
	}
	return hash, nil
}

func (f *fakeChain) Await(_ context.Context, hash string) (challenge.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rcpt := challenge.Receipt{TxHash: hash, Block: 1}
	if f.sent[hash].Method == challenge.MethodCreate {
		rcpt.ChallengeID = f.nextID
	}
	return rcpt, nil
}

func (f *fakeChain) Transaction(_ context.Context, hash string) (challenge.SentTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.sent[hash]
	if !ok {
		return challenge.SentTx{}, errors.New("not found")
	}
	return tx, nil
}

type fixture struct {
	chain  *fakeChain
	meta   *metadata.Reconciler
	events []bus.Event
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{chain: &fakeChain{}}
	client := memory.New().Client()
	f.meta = metadata.New(client, nil)
	b := bus.New(client, nil)
	b.Subscribe(func(ev bus.Event) { f.events = append(f.events, ev) })
	f.svc = New(f.chain, f.chain, f.meta, b, Options{Symbol: "ETH", Now: func() time.Time { return now }})
	return f
}

func validForm() challenge.CreateForm {
	return challenge.CreateForm{
		Title:           "Walk <b>10k</b> steps",
		Description:     "Every day & night",
		Category:        "Lifestyle",
		ProofType:       "image",
		Reward:          "0.001",
		DurationDays:    3,
		MaxParticipants: 4,
	}
}

func TestCreateReconcilesMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rcpt, err := f.svc.Create(ctx, creator, validForm())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rcpt.ChallengeID)

	require.Len(t, f.chain.calls, 1)
	assert.Equal(t, "Walk 10k steps", f.chain.calls[0].Args[0])
	assert.Equal(t, "Every day & night", f.chain.calls[0].Args[1])
	assert.Equal(t, "4000000000000000", f.chain.calls[0].Value.String())

	require.Len(t, f.events, 1)
	assert.Equal(t, bus.Created, f.events[0].Kind)
	assert.Equal(t, uint64(1), f.events[0].ChallengeID)

	views, err := f.svc.List(ctx, challenge.Query{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].HasMetadata)
	assert.Equal(t, "Lifestyle", views[0].Category)
	assert.Equal(t, challenge.StatusActive, views[0].Status)
	assert.Equal(t, "3d 0h", views[0].TimeLeft)
	assert.Equal(t, "0.0040 ETH", views[0].TotalPoolDisplay)
}

func TestListSkipsInvalidRows(t *testing.T) {
	f := newFixture(t)
	f.chain.rows = []challenge.RawRecord{
		{ID: big.NewInt(0), Deadline: big.NewInt(0), MaxParticipants: big.NewInt(0), CurrentParticipants: big.NewInt(0)},
		{ID: big.NewInt(2), Title: "Real", Reward: big.NewInt(1), Deadline: big.NewInt(now.Unix() + 10), MaxParticipants: big.NewInt(2), CurrentParticipants: big.NewInt(0)},
	}
	views, err := f.svc.List(context.Background(), challenge.Query{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, uint64(2), views[0].ID)
	assert.False(t, views[0].HasMetadata)

	_, err = f.svc.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePublishesAndForgets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, creator, validForm())
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, 1)
	require.NoError(t, err)
	_, ok := f.meta.Lookup(ctx, 1)
	require.True(t, ok)

	_, err = f.svc.Delete(ctx, 1)
	require.NoError(t, err)
	_, ok = f.meta.Lookup(ctx, 1)
	assert.False(t, ok)
	require.Len(t, f.events, 2)
	assert.Equal(t, bus.Deleted, f.events[1].Kind)
	assert.Equal(t, uint64(1), f.events[1].ChallengeID)
}

func TestCompleteRequiresActive(t *testing.T) {
	f := newFixture(t)
	f.chain.rows = []challenge.RawRecord{{
		ID: big.NewInt(5), Title: "Old", Reward: big.NewInt(1),
		Deadline: big.NewInt(now.Unix() - 10), MaxParticipants: big.NewInt(2), CurrentParticipants: big.NewInt(0),
	}}
	_, err := f.svc.Complete(context.Background(), 5)
	assert.True(t, challenge.IsValidation(err))

	_, err = f.svc.Refund(context.Background(), 5)
	assert.True(t, challenge.IsValidation(err), "still inside the grace window")
	assert.Empty(t, f.chain.calls)

	f.svc.now = func() time.Time { return now.Add(time.Hour) }
	_, err = f.svc.Refund(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, f.events, 1)
	assert.Equal(t, bus.Refunded, f.events[0].Kind)
}

func TestValidationStopsBeforeWrite(t *testing.T) {
	f := newFixture(t)
	form := validForm()
	form.Title = "<script></script>"
	_, err := f.svc.Create(context.Background(), creator, form)
	assert.True(t, challenge.IsValidation(err))
	assert.Empty(t, f.chain.calls)
	assert.Empty(t, f.meta.Pending(context.Background(), ""))
}

func TestSubmitFailureKeepsPending(t *testing.T) {
	f := newFixture(t)
	f.chain.submitErr = errors.New("execution reverted: insufficient funds")
	_, err := f.svc.Create(context.Background(), creator, validForm())
	require.Error(t, err)
	assert.Len(t, f.meta.Pending(context.Background(), creator), 1)
	assert.Empty(t, f.events)
}

func TestEncodeFailureQueuesNothing(t *testing.T) {
	f := newFixture(t)
	f.svc.encode = func(challenge.Call) ([]byte, error) { return nil, errors.New("abi: cannot use string as type uint256") }

	_, err := f.svc.PrepareCreate(context.Background(), creator, validForm())
	require.Error(t, err)
	assert.Empty(t, f.meta.Pending(context.Background(), ""))
}

func TestPrepareCarriesCalldata(t *testing.T) {
	f := newFixture(t)
	f.svc.encode = func(call challenge.Call) ([]byte, error) { return []byte(call.Method), nil }

	plan, err := f.svc.PrepareCreate(context.Background(), creator, validForm())
	require.NoError(t, err)
	assert.Equal(t, []byte(challenge.MethodCreate), plan.Call.Input)
	assert.Len(t, f.meta.Pending(context.Background(), creator), 1)

	call, err := f.svc.Prepare(context.Background(), ActionDelete, 3, challenge.EditForm{})
	require.NoError(t, err)
	assert.Equal(t, []byte(challenge.MethodDelete), call.Input)
}

func TestPrepareCreateRejectsLongDuration(t *testing.T) {
	f := newFixture(t)
	form := validForm()
	form.DurationDays = 1_000_000_000
	_, err := f.svc.PrepareCreate(context.Background(), creator, form)
	assert.True(t, challenge.IsValidation(err))
	assert.Empty(t, f.meta.Pending(context.Background(), ""))
}

func TestConfirmVerifiesTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, creator, validForm())
	require.NoError(t, err)
	f.chain.rows = append(f.chain.rows, challenge.RawRecord{
		ID: big.NewInt(2), Title: "Other", Reward: big.NewInt(1), CreatorAddress: creator,
		Deadline: big.NewInt(now.Unix() + 100), MaxParticipants: big.NewInt(2), CurrentParticipants: big.NewInt(0),
	})
	_, err = f.svc.Get(ctx, 1)
	require.NoError(t, err)
	f.chain.sent["0xdelete"] = challenge.SentTx{Hash: "0xdelete", From: creator, Method: challenge.MethodDelete, ChallengeID: 1}

	cases := map[string]struct {
		action Action
		id     uint64
		from   string
	}{
		"wrong action":  {ActionRefund, 1, creator},
		"wrong id":      {ActionDelete, 2, creator},
		"other sender":  {ActionDelete, 1, "0x00000000000000000000000000000000000000bb"},
		"missing actor": {ActionDelete, 1, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Confirm(ctx, tc.action, tc.id, "0xdelete", tc.from)
			assert.True(t, challenge.IsValidation(err), "%v", err)
		})
	}
	_, ok := f.meta.Lookup(ctx, 1)
	assert.True(t, ok)
	assert.Len(t, f.events, 1)

	rcpt, err := f.svc.Confirm(ctx, ActionCreate, 0, "0xhash1", strings.ToLower(creator))
	require.NoError(t, err)
	assert.Equal(t, "0xhash1", rcpt.TxHash)
}

func TestConfirmDeleteRequiresRemoval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, creator, validForm())
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, 1)
	require.NoError(t, err)

	f.chain.keepDeleted = true
	_, err = f.svc.Delete(ctx, 1)
	assert.True(t, challenge.IsValidation(err))
	_, ok := f.meta.Lookup(ctx, 1)
	assert.True(t, ok)
	require.Len(t, f.events, 1)
	assert.Equal(t, bus.Created, f.events[0].Kind)
}

func TestReadOnly(t *testing.T) {
	f := newFixture(t)
	svc := New(f.chain, nil, f.meta, bus.New(memory.New().Client(), nil), Options{})
	_, err := svc.Create(context.Background(), creator, validForm())
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, creator, validForm())
	require.NoError(t, err)

	f.chain.rows = append(f.chain.rows, challenge.RawRecord{
		ID: big.NewInt(9), Title: "Stretch", Reward: big.NewInt(1),
		Deadline: big.NewInt(now.Unix() + 100), MaxParticipants: big.NewInt(2), CurrentParticipants: big.NewInt(1),
	})
	f.chain.completed = []uint64{9, 42}
	_, err = f.svc.PrepareCreate(ctx, creator, validForm())
	require.NoError(t, err)

	d, err := f.svc.Dashboard(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, 1, d.CreatedCount)
	assert.Equal(t, 1, d.ActiveCreated)
	require.Equal(t, 1, d.CompletedCount, "unknown ids resolve to placeholders and are dropped")
	assert.Equal(t, uint64(9), d.Completed[0].ID)
	assert.Equal(t, 1, d.PendingCreates)
}

func TestParseAction(t *testing.T) {
	a, ok := ParseAction("Refund")
	assert.True(t, ok)
	assert.Equal(t, ActionRefund, a)
	_, ok = ParseAction("explode")
	assert.False(t, ok)
}

func TestEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, creator, validForm())
	require.NoError(t, err)

	entries, err := f.svc.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Meta)
	assert.Equal(t, "Lifestyle", entries[0].Meta.Category)
}
