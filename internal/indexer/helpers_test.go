package indexer

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"bridgeScope/internal/kvstore"
	"bridgeScope/internal/model"
)

const testEventABI = `[{
	"anonymous": false,
	"type": "event",
	"name": "Deposit",
	"inputs": [
		{"indexed": true, "name": "sender", "type": "address"},
		{"indexed": false, "name": "nonce", "type": "uint64"},
		{"indexed": false, "name": "amount", "type": "uint256"},
		{"indexed": false, "name": "payload", "type": "bytes"}
	]
}]`

var (
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testSender   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func testEvent(t *testing.T) abi.Event {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(testEventABI))
	require.NoError(t, err)
	return parsed.Events["Deposit"]
}

func depositLog(t *testing.T, block uint64, index uint, nonce uint64) types.Log {
	t.Helper()
	event := testEvent(t)
	data, err := event.Inputs.NonIndexed().Pack(nonce, big.NewInt(int64(nonce)*10), []byte{0xab, byte(nonce)})
	require.NoError(t, err)
	return types.Log{
		Address:     testContract,
		Topics:      []common.Hash{event.ID, common.BytesToHash(testSender.Bytes())},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block*1000 + uint64(index))),
		Index:       index,
	}
}

func nonceKey() []SecondaryKey {
	return []SecondaryKey{{
		Name: "nonce",
		Value: func(log model.DecodedLog) (string, error) {
			return log.Decoded.Get("nonce")
		},
	}}
}

func testStore(t *testing.T) *kvstore.Store {
	t.Helper()
	store, err := kvstore.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type fakeSource struct {
	mu         sync.Mutex
	head       uint64
	logs       []types.Log
	headErr    error
	fetchErr   error
	fetches    []BlockRange
	timestamps map[uint64]uint64
}

func (f *fakeSource) LatestBlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, f.headErr
}

func (f *fakeSource) FetchLogs(_ context.Context, from, to uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	f.fetches = append(f.fetches, BlockRange{From: from, To: to})

	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber < from || log.BlockNumber > to {
			continue
		}
		if !containsAddress(addresses, log.Address) || !containsHash(topic0, log.Topics[0]) {
			continue
		}
		out = append(out, log)
	}
	return out, nil
}

func (f *fakeSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	if ts, ok := f.timestamps[number]; ok {
		return ts, nil
	}
	return 1_700_000_000 + number*12, nil
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetches)
}

func containsAddress(list []common.Address, target common.Address) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}

func containsHash(list []common.Hash, target common.Hash) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}

func decodedLog(nonce uint64) model.DecodedLog {
	return model.DecodedLog{
		Log: model.LogRecord{ChainID: 1, BlockNumber: 100 + nonce, TxHash: fmt.Sprintf("0x%064x", nonce)},
		Decoded: model.Fields{
			"nonce": fmt.Sprint(nonce),
		},
		Context: model.LogContext{ChainID: 1, BlockNumber: 100 + nonce, Timestamp: 1_000 + nonce},
	}
}
