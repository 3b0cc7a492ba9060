package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stake-plus/base-buddies/src/challenge"
)

func TestTupleDecoding(t *testing.T) {
	creator := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	rows := []tuple{
		{Id: big.NewInt(1), Title: "a", Description: "d", CreatorNickname: "n", CreatorAddress: creator,
			Reward: big.NewInt(5), Deadline: big.NewInt(100), MaxParticipants: big.NewInt(3), CurrentParticipants: big.NewInt(1)},
		{Id: big.NewInt(0), Reward: big.NewInt(0), Deadline: big.NewInt(0), MaxParticipants: big.NewInt(0), CurrentParticipants: big.NewInt(0)},
	}
	method := parsedABI.Methods["getAllChallenges"]
	data, err := method.Outputs.Pack(rows)
	require.NoError(t, err)

	out, err := parsedABI.Unpack("getAllChallenges", data)
	require.NoError(t, err)
	got := *abi.ConvertType(out[0], new([]tuple)).(*[]tuple)
	require.Len(t, got, 2)

	raw := got[0].raw()
	assert.Equal(t, creator.Hex(), raw.CreatorAddress)
	assert.Equal(t, "a", raw.Title)

	valid := challenge.FilterValid([]challenge.RawRecord{got[0].raw(), got[1].raw()})
	require.Len(t, valid, 1)
	assert.Equal(t, uint64(1), valid[0].ID)
}

func TestCompletedIDsDecoding(t *testing.T) {
	method := parsedABI.Methods["getUserCompletedChallenges"]
	data, err := method.Outputs.Pack([]*big.Int{big.NewInt(3), big.NewInt(0), big.NewInt(7)})
	require.NoError(t, err)

	out, err := parsedABI.Unpack("getUserCompletedChallenges", data)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []uint64{3, 7}, idList(out[0]))
}

func signedTx(t *testing.T, to common.Address, call challenge.Call) (*types.Transaction, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	input, err := Pack(call)
	require.NoError(t, err)
	chainID := big.NewInt(8453)
	tx, err := types.SignNewTx(key, types.LatestSignerForChainID(chainID), &types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     1,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       100_000,
		To:        &to,
		Data:      input,
	})
	require.NoError(t, err)
	return tx, crypto.PubkeyToAddress(key.PublicKey)
}

func TestDecodeTx(t *testing.T) {
	contract := common.HexToAddress(DefaultContract)
	del, err := challenge.PlanDelete(4)
	require.NoError(t, err)

	tx, from := signedTx(t, contract, del)
	sent, err := decodeTx(tx, contract)
	require.NoError(t, err)
	assert.Equal(t, challenge.MethodDelete, sent.Method)
	assert.Equal(t, uint64(4), sent.ChallengeID)
	assert.Equal(t, from.Hex(), sent.From)
	assert.Equal(t, tx.Hash().Hex(), sent.Hash)

	plan, err := challenge.PlanCreate(challenge.CreateForm{
		Title: "t", Description: "d", Reward: "0.01", DurationDays: 1, MaxParticipants: 2,
	}, time.Unix(1000, 0))
	require.NoError(t, err)
	tx, _ = signedTx(t, contract, plan.Call)
	sent, err = decodeTx(tx, contract)
	require.NoError(t, err)
	assert.Equal(t, challenge.MethodCreate, sent.Method)
	assert.Zero(t, sent.ChallengeID)

	tx, _ = signedTx(t, common.HexToAddress("0x01"), del)
	sent, err = decodeTx(tx, contract)
	require.NoError(t, err)
	assert.Empty(t, sent.Method)
}

func TestPackCreateCall(t *testing.T) {
	plan, err := challenge.PlanCreate(challenge.CreateForm{
		Title: "t", Description: "d", Reward: "0.01", DurationDays: 1, MaxParticipants: 2,
	}, time.Unix(1000, 0))
	require.NoError(t, err)

	data, err := Pack(plan.Call)
	require.NoError(t, err)
	assert.Equal(t, parsedABI.Methods["createChallenge"].ID, data[:4])

	_, err = Pack(challenge.Call{Method: "selfDestruct"})
	assert.Error(t, err)
}

func TestCreatedID(t *testing.T) {
	contract := common.HexToAddress(DefaultContract)
	ev := parsedABI.Events["ChallengeCreated"]
	logs := []*types.Log{
		{Address: common.HexToAddress("0x01"), Topics: []common.Hash{ev.ID, common.BigToHash(big.NewInt(9))}},
		{Address: contract, Topics: []common.Hash{ev.ID, common.BigToHash(big.NewInt(42)), common.Hash{}}},
	}
	assert.Equal(t, uint64(42), CreatedID(logs, contract))
	assert.Equal(t, uint64(0), CreatedID(nil, contract))
}

type fakeReceipts struct {
	mu    sync.Mutex
	calls int
	ready int
	rcpt  *types.Receipt
	err   error
}

func (f *fakeReceipts) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.calls < f.ready {
		return nil, ethereum.NotFound
	}
	return f.rcpt, nil
}

func TestAwaitReceipt(t *testing.T) {
	defer goleak.VerifyNone(t)
	contract := common.HexToAddress(DefaultContract)
	ev := parsedABI.Events["ChallengeCreated"]
	src := &fakeReceipts{ready: 3, rcpt: &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(77),
		Logs:        []*types.Log{{Address: contract, Topics: []common.Hash{ev.ID, common.BigToHash(big.NewInt(5))}}},
	}}

	r, err := awaitReceipt(context.Background(), src, common.Hash{1}, contract, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), r.Block)
	assert.Equal(t, uint64(5), r.ChallengeID)
	assert.Equal(t, 3, src.calls)
}

func TestAwaitReceiptReverted(t *testing.T) {
	src := &fakeReceipts{rcpt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(1)}}
	_, err := awaitReceipt(context.Background(), src, common.Hash{1}, common.Address{}, time.Millisecond)
	assert.ErrorIs(t, err, ErrReverted)
}

func TestAwaitReceiptStops(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	src := &fakeReceipts{ready: 1 << 30}
	_, err := awaitReceipt(ctx, src, common.Hash{1}, common.Address{}, time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	src = &fakeReceipts{err: errors.New("boom")}
	_, err = awaitReceipt(context.Background(), src, common.Hash{1}, common.Address{}, time.Millisecond)
	assert.ErrorContains(t, err, "boom")
}

type fakeHeads struct {
	mu     sync.Mutex
	blocks []int64
}

func (f *fakeHeads) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.blocks[0]
	if len(f.blocks) > 1 {
		f.blocks = f.blocks[1:]
	}
	return &types.Header{Number: big.NewInt(n)}, nil
}

func TestHeadWatcher(t *testing.T) {
	defer goleak.VerifyNone(t)
	src := &fakeHeads{blocks: []int64{10, 10, 11, 11, 13}}
	w := NewHeadWatcher(src, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu   sync.Mutex
		seen []uint64
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, func(n uint64) {
			mu.Lock()
			seen = append(seen, n)
			mu.Unlock()
		})
	}()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []uint64{11, 13}, seen)
}

func TestIsHash(t *testing.T) {
	assert.True(t, isHash(common.Hash{1}.Hex()))
	assert.False(t, isHash("0x1234"))
	assert.False(t, isHash("0x"+string(make([]byte, 64))))
}

func TestPublicAddress(t *testing.T) {
	// Well-known development key.
	addr, err := PublicAddress("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", addr.Hex())

	_, err = PublicAddress("nope")
	assert.Error(t, err)
}
