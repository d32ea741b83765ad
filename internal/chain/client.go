package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const timestampCacheSize = 4096

// Client wraps go-ethereum RPC for a single chain and provides helper methods.
type Client struct {
	*ethclient.Client

	rpcClient *rpc.Client
	chainID   uint64
	tsCache   *lru.Cache[uint64, uint64]
}

// NewClient dials rpcURL and checks that the endpoint serves the expected chain.
// An expectedChainID of zero accepts whatever the endpoint reports.
func NewClient(ctx context.Context, rpcURL string, expectedChainID uint64) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		Client:    ethclient.NewClient(rpcClient),
		rpcClient: rpcClient,
		tsCache:   lru.NewCache[uint64, uint64](timestampCacheSize),
	}

	chainID, err := c.Client.ChainID(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		c.Close()
		return nil, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	if expectedChainID != 0 && chainID.Uint64() != expectedChainID {
		c.Close()
		return nil, fmt.Errorf("rpc %s serves chain %d, expected %d", rpcURL, chainID.Uint64(), expectedChainID)
	}
	c.chainID = chainID.Uint64()

	return c, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ID returns the chain ID reported at dial time.
func (c *Client) ID() uint64 {
	return c.chainID
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.Client.BlockNumber(ctx)
}

// BlockTimestamp returns the block timestamp in seconds, using an LRU cache
// keyed by block number.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	if ts, ok := c.tsCache.Get(number); ok {
		return ts, nil
	}

	header, err := c.Client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}

	c.tsCache.Add(number, header.Time)
	return header.Time, nil
}

// FetchLogs returns logs in the given range for addresses and topic0 filters.
func (c *Client) FetchLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.Client.FilterLogs(ctx, query)
}
