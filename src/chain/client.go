// Package chain talks to the Base Buddies contract over JSON-RPC.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/stake-plus/base-buddies/src/challenge"
	"github.com/stake-plus/base-buddies/src/logging"
)

var (
	ErrNoSigner = errors.New("chain: no signing key configured")
	ErrReverted = errors.New("chain: transaction reverted")
)

type Config struct {
	RPCURL     string
	Contract   string
	PrivateKey string
	ChainID    int64

	// RetryFor bounds how long a read keeps retrying.
	RetryFor time.Duration
	// ReceiptPoll is the interval between receipt lookups.
	ReceiptPoll time.Duration
}

// Backend is what the client needs from an RPC connection.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	ChainID(ctx context.Context) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
}

type Client struct {
	backend  Backend
	address  common.Address
	contract *bind.BoundContract
	signer   *bind.TransactOpts
	cfg      Config
	log      *zap.Logger
}

// Dial connects to cfg.RPCURL.
func Dial(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("chain: RPC URL is required")
	}
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	c, err := New(ctx, eth, cfg, log)
	if err != nil {
		eth.Close()
		return nil, err
	}
	return c, nil
}

// New binds the contract on an existing backend. A signer is set up only
// when cfg.PrivateKey is present.
func New(ctx context.Context, backend Backend, cfg Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Contract == "" {
		cfg.Contract = DefaultContract
	}
	if !common.IsHexAddress(cfg.Contract) {
		return nil, fmt.Errorf("chain: invalid contract address %q", cfg.Contract)
	}
	if cfg.RetryFor <= 0 {
		cfg.RetryFor = 10 * time.Second
	}
	if cfg.ReceiptPoll <= 0 {
		cfg.ReceiptPoll = 2 * time.Second
	}
	addr := common.HexToAddress(cfg.Contract)
	c := &Client{
		backend:  backend,
		address:  addr,
		contract: bind.NewBoundContract(addr, parsedABI, backend, backend, backend),
		cfg:      cfg,
		log:      log.Named("chain"),
	}
	if cfg.PrivateKey != "" {
		from, err := PublicAddress(cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("chain: parse private key: %w", err)
		}
		signer, err := c.keyedTransactor(ctx, cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		c.signer = signer
		c.log.Info("signing enabled", zap.String("from", from.Hex()))
	}
	return c, nil
}

func (c *Client) keyedTransactor(ctx context.Context, hexKey string) (*bind.TransactOpts, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain: parse private key: %w", err)
	}
	chainID := big.NewInt(c.cfg.ChainID)
	if c.cfg.ChainID == 0 {
		if chainID, err = c.backend.ChainID(ctx); err != nil {
			return nil, fmt.Errorf("chain: chain id: %w", err)
		}
	}
	return bind.NewKeyedTransactorWithChainID(key, chainID)
}

// Address is the contract address.
func (c *Client) Address() common.Address { return c.address }

// Close releases the RPC connection when the backend holds one.
func (c *Client) Close() {
	if cl, ok := c.backend.(interface{ Close() }); ok {
		cl.Close()
	}
}

// Sender is the signing account, if any.
func (c *Client) Sender() (common.Address, bool) {
	if c.signer == nil {
		return common.Address{}, false
	}
	return c.signer.From, true
}

func (c *Client) All(ctx context.Context) ([]challenge.RawRecord, error) {
	return c.list(ctx, "getAllChallenges")
}

func (c *Client) Get(ctx context.Context, id uint64) (challenge.RawRecord, error) {
	out, err := c.call(ctx, "getChallenge", new(big.Int).SetUint64(id))
	if err != nil {
		return challenge.RawRecord{}, err
	}
	t := *abi.ConvertType(out[0], new(tuple)).(*tuple)
	return t.raw(), nil
}

func (c *Client) CreatedBy(ctx context.Context, user string) ([]challenge.RawRecord, error) {
	if !common.IsHexAddress(user) {
		return nil, fmt.Errorf("chain: invalid address %q", user)
	}
	return c.list(ctx, "getUserCreatedChallenges", common.HexToAddress(user))
}

// CompletedBy returns the ids user has completed.
func (c *Client) CompletedBy(ctx context.Context, user string) ([]uint64, error) {
	if !common.IsHexAddress(user) {
		return nil, fmt.Errorf("chain: invalid address %q", user)
	}
	out, err := c.call(ctx, "getUserCompletedChallenges", common.HexToAddress(user))
	if err != nil {
		return nil, err
	}
	return idList(out[0]), nil
}

func idList(v any) []uint64 {
	raw := *abi.ConvertType(v, new([]*big.Int)).(*[]*big.Int)
	ids := make([]uint64, 0, len(raw))
	for _, id := range raw {
		if id != nil && id.Sign() > 0 && id.IsUint64() {
			ids = append(ids, id.Uint64())
		}
	}
	return ids
}

func (c *Client) list(ctx context.Context, method string, args ...any) ([]challenge.RawRecord, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	rows := *abi.ConvertType(out[0], new([]tuple)).(*[]tuple)
	raws := make([]challenge.RawRecord, len(rows))
	for i, t := range rows {
		raws[i] = t.raw()
	}
	return raws, nil
}

// call runs a view method, retrying transport failures with backoff.
// Reverts are not retried.
func (c *Client) call(ctx context.Context, method string, args ...any) ([]any, error) {
	var out []any
	op := func() error {
		out = nil
		err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...)
		if err == nil {
			return nil
		}
		if isRevert(err) {
			return backoff.Permanent(err)
		}
		if logging.IsRateLimit(err) {
			c.log.Debug("rpc rate limited", zap.String("method", method))
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.Multiplier = 1.5
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = c.cfg.RetryFor

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return out, nil
}

func isRevert(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

// Submit signs and sends call, returning the transaction hash.
func (c *Client) Submit(ctx context.Context, call challenge.Call) (string, error) {
	if c.signer == nil {
		return "", ErrNoSigner
	}
	opts := *c.signer
	opts.Context = ctx
	opts.Value = call.Value
	tx, err := c.contract.Transact(&opts, call.Method, call.Args...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", call.Method, err)
	}
	c.log.Info("transaction sent", zap.String("method", call.Method), zap.String("tx", tx.Hash().Hex()))
	return tx.Hash().Hex(), nil
}

// Await blocks until the transaction with hash is mined.
func (c *Client) Await(ctx context.Context, hash string) (challenge.Receipt, error) {
	if !isHash(hash) {
		return challenge.Receipt{}, fmt.Errorf("chain: invalid transaction hash %q", hash)
	}
	return awaitReceipt(ctx, c.backend, common.HexToHash(hash), c.address, c.cfg.ReceiptPoll)
}

// Transaction loads hash and decodes the contract call it carries.
func (c *Client) Transaction(ctx context.Context, hash string) (challenge.SentTx, error) {
	if !isHash(hash) {
		return challenge.SentTx{}, fmt.Errorf("chain: invalid transaction hash %q", hash)
	}
	tx, _, err := c.backend.TransactionByHash(ctx, common.HexToHash(hash))
	if err != nil {
		return challenge.SentTx{}, fmt.Errorf("transaction %s: %w", hash, err)
	}
	return decodeTx(tx, c.address)
}

// ReceiptSource looks up mined transactions.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

func awaitReceipt(ctx context.Context, src ReceiptSource, hash common.Hash, contract common.Address, poll time.Duration) (challenge.Receipt, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		r, err := src.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && r != nil:
			out := challenge.Receipt{TxHash: hash.Hex(), ChallengeID: CreatedID(r.Logs, contract)}
			if r.BlockNumber != nil {
				out.Block = r.BlockNumber.Uint64()
			}
			if r.Status != types.ReceiptStatusSuccessful {
				return out, fmt.Errorf("%w: %s", ErrReverted, hash.Hex())
			}
			return out, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			return challenge.Receipt{}, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		}
		select {
		case <-ctx.Done():
			return challenge.Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func isHash(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 2*common.HashLength {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// PublicAddress derives the account of a hex private key.
func PublicAddress(hexKey string) (common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}
