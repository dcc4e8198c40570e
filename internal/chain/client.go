package chain

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency    = 20
	DefaultRequestSpacing = 10 * time.Millisecond
	DefaultCallTimeout    = 30 * time.Second
)

// Options tune the client's fan-out and pacing.
type Options struct {
	// Concurrency bounds parallel requests in BlocksBatch.
	Concurrency int
	// RequestSpacing is the minimum gap between any two RPC calls.
	RequestSpacing time.Duration
	// CallTimeout bounds each individual RPC call.
	CallTimeout time.Duration
}

func (o *Options) withDefaults() Options {
	out := Options{
		Concurrency:    DefaultConcurrency,
		RequestSpacing: DefaultRequestSpacing,
		CallTimeout:    DefaultCallTimeout,
	}
	if o == nil {
		return out
	}
	if o.Concurrency > 0 {
		out.Concurrency = o.Concurrency
	}
	if o.RequestSpacing > 0 {
		out.RequestSpacing = o.RequestSpacing
	}
	if o.CallTimeout > 0 {
		out.CallTimeout = o.CallTimeout
	}
	return out
}

// Client wraps go-ethereum RPC with client-side pacing and bounded batch
// fetch. The underlying HTTP connection pool is shared by all calls.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	gate      *intervalGate
	opts      Options
}

// NewClient dials the RPC URL.
func NewClient(ctx context.Context, rpcURL string, opts *Options) (*Client, error) {
	resolved := opts.withDefaults()
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		gate:      newIntervalGate(resolved.RequestSpacing),
		opts:      resolved,
	}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opts.CallTimeout)
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	if err := c.gate.wait(ctx); err != nil {
		return nil, err
	}
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()
	return c.ethClient.ChainID(callCtx)
}

// LatestBlockNumber returns the chain head number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	if err := c.gate.wait(ctx); err != nil {
		return 0, err
	}
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()
	return c.ethClient.BlockNumber(callCtx)
}

// BlockByNumber returns the block, or nil without error when the node does
// not know it. Transport failures surface as errors.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	if err := c.gate.wait(ctx); err != nil {
		return nil, err
	}
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()
	block, err := c.ethClient.BlockByNumber(callCtx, new(big.Int).SetUint64(number))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	return block, err
}

// HeaderByNumber returns the block header by number, nil if unknown.
func (c *Client) HeaderByNumber(ctx context.Context, number uint64) (*types.Header, error) {
	if err := c.gate.wait(ctx); err != nil {
		return nil, err
	}
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()
	header, err := c.ethClient.HeaderByNumber(callCtx, new(big.Int).SetUint64(number))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	return header, err
}

// TransactionByHash returns the transaction, nil if unknown.
func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	if err := c.gate.wait(ctx); err != nil {
		return nil, false, err
	}
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()
	tx, pending, err := c.ethClient.TransactionByHash(callCtx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, false, nil
	}
	return tx, pending, err
}

// TransactionReceipt returns the receipt, nil if the node has none.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := c.gate.wait(ctx); err != nil {
		return nil, err
	}
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()
	receipt, err := c.ethClient.TransactionReceipt(callCtx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	return receipt, err
}

// FilterLogs fetches logs for an inclusive block range. Callers must keep the
// range small enough for the node; there is no auto-chunking here.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	if err := c.gate.wait(ctx); err != nil {
		return nil, err
	}
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()
	return c.ethClient.FilterLogs(callCtx, query)
}

// CodeAt returns the contract code at the latest block.
func (c *Client) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	if err := c.gate.wait(ctx); err != nil {
		return nil, err
	}
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()
	return c.ethClient.CodeAt(callCtx, address, nil)
}

// BalanceAt returns the balance at the latest block.
func (c *Client) BalanceAt(ctx context.Context, address common.Address) (*big.Int, error) {
	if err := c.gate.wait(ctx); err != nil {
		return nil, err
	}
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()
	return c.ethClient.BalanceAt(callCtx, address, nil)
}

// NonceAt returns the transaction count at the latest block.
func (c *Client) NonceAt(ctx context.Context, address common.Address) (uint64, error) {
	if err := c.gate.wait(ctx); err != nil {
		return 0, err
	}
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()
	return c.ethClient.NonceAt(callCtx, address, nil)
}

// BlockResult is one slot of a batch fetch. A nil Block with a nil Err means
// the node does not have the block.
type BlockResult struct {
	Number uint64
	Block  *types.Block
	Err    error
}

// BlocksBatch fetches an inclusive range concurrently, bounded by the
// configured concurrency. One slot failing never aborts the batch; the error
// is reported in that slot so the caller can account for it. Results are
// ordered by block number.
func (c *Client) BlocksBatch(ctx context.Context, fromBlock, toBlock uint64) []BlockResult {
	if toBlock < fromBlock {
		return nil
	}
	results := make([]BlockResult, toBlock-fromBlock+1)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.opts.Concurrency)
	for i := range results {
		number := fromBlock + uint64(i)
		slot := &results[i]
		slot.Number = number
		group.Go(func() error {
			block, err := c.BlockByNumber(groupCtx, number)
			slot.Block = block
			slot.Err = err
			return nil
		})
	}
	// Workers never return errors; Wait only joins them.
	_ = group.Wait()
	return results
}
