package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"bridgeScope/internal/kvstore"
	"bridgeScope/internal/model"
)

const testChainID = 1

type indexerFixture struct {
	indexer *Indexer
	source  *fakeSource
	id      string
}

func newIndexerFixture(t *testing.T, store *kvstore.Store, source *fakeSource, cfg ChainConfig) indexerFixture {
	t.Helper()
	db := NewDB(store, "test", map[uint64]uint64{testChainID: 100})
	idx := New(db,
		map[uint64]LogSource{testChainID: source},
		map[uint64]ChainConfig{testChainID: cfg},
		nil,
	)
	event := testEvent(t)
	id, err := idx.Register(Registration{
		Filter:        Filter{ChainID: testChainID, EventSignature: event.ID, ContractAddress: testContract},
		Decoder:       NewABIDecoder(event),
		SecondaryKeys: MustFieldKeys(event, "nonce"),
	})
	require.NoError(t, err)
	return indexerFixture{indexer: idx, source: source, id: id}
}

func TestScanStepAdvancesCheckpoint(t *testing.T) {
	source := &fakeSource{head: 150}
	source.logs = []types.Log{depositLog(t, 105, 0, 1), depositLog(t, 120, 4, 2)}
	fx := newIndexerFixture(t, testStore(t), source, ChainConfig{MaxBlockRange: 10, Confirmations: 5})

	result, err := fx.indexer.ScanStep(context.Background(), fx.id, nil)
	require.NoError(t, err)
	require.True(t, result.Scanned)
	require.Equal(t, BlockRange{From: 101, To: 110}, result.Range)
	require.Equal(t, 1, result.Logs)

	synced, err := fx.indexer.LastSynced(fx.id)
	require.NoError(t, err)
	require.Equal(t, uint64(110), synced)

	item, err := fx.indexer.GetIndexedItem(fx.id, []string{"1"})
	require.NoError(t, err)
	require.Equal(t, uint64(105), item.Context.BlockNumber)
	require.Equal(t, uint64(testChainID), item.Context.ChainID)
	require.Equal(t, uint64(1_700_000_000+105*12), item.Context.Timestamp)
	require.Equal(t, testSender.Hex(), item.Decoded["sender"])

	total, err := fx.indexer.SyncToHead(context.Background(), fx.id, nil)
	require.NoError(t, err)
	require.Equal(t, 1, total)

	synced, err = fx.indexer.LastSynced(fx.id)
	require.NoError(t, err)
	require.Equal(t, uint64(145), synced)
	require.Len(t, source.fetches, 5)
}

func TestScanStepIdleWithinConfirmations(t *testing.T) {
	source := &fakeSource{head: 103}
	fx := newIndexerFixture(t, testStore(t), source, ChainConfig{MaxBlockRange: 10, Confirmations: 5})

	result, err := fx.indexer.ScanStep(context.Background(), fx.id, nil)
	require.NoError(t, err)
	require.False(t, result.Scanned)
	require.Zero(t, source.fetchCount())

	synced, err := fx.indexer.LastSynced(fx.id)
	require.NoError(t, err)
	require.Equal(t, uint64(100), synced)
}

func TestScanStepResumesAfterRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	source := &fakeSource{head: 200}
	source.logs = []types.Log{depositLog(t, 105, 0, 1), depositLog(t, 115, 0, 2)}
	cfg := ChainConfig{MaxBlockRange: 10}

	store, err := kvstore.Open(path)
	require.NoError(t, err)
	fx := newIndexerFixture(t, store, source, cfg)
	for i := 0; i < 2; i++ {
		_, err := fx.indexer.ScanStep(context.Background(), fx.id, nil)
		require.NoError(t, err)
	}
	require.NoError(t, store.Close())

	store, err = kvstore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	source.fetches = nil
	restarted := newIndexerFixture(t, store, source, cfg)
	require.Equal(t, fx.id, restarted.id)

	synced, err := restarted.indexer.LastSynced(restarted.id)
	require.NoError(t, err)
	require.Equal(t, uint64(120), synced)

	result, err := restarted.indexer.ScanStep(context.Background(), restarted.id, nil)
	require.NoError(t, err)
	require.Equal(t, BlockRange{From: 121, To: 130}, result.Range)
	require.Equal(t, []BlockRange{{From: 121, To: 130}}, source.fetches)

	_, err = restarted.indexer.GetIndexedItem(restarted.id, []string{"2"})
	require.NoError(t, err)
}

func TestScanStepHandlerFailureLeavesCheckpoint(t *testing.T) {
	source := &fakeSource{head: 200}
	source.logs = []types.Log{depositLog(t, 105, 0, 1)}
	fx := newIndexerFixture(t, testStore(t), source, ChainConfig{MaxBlockRange: 10})

	handlerErr := errors.New("sink unavailable")
	calls := 0
	failing := func(_ context.Context, logs []model.DecodedLog) error {
		calls++
		require.Len(t, logs, 1)
		return handlerErr
	}

	_, err := fx.indexer.ScanStep(context.Background(), fx.id, failing)
	require.ErrorIs(t, err, handlerErr)
	require.False(t, IsFatal(err))

	synced, err := fx.indexer.LastSynced(fx.id)
	require.NoError(t, err)
	require.Equal(t, uint64(100), synced)
	_, err = fx.indexer.GetIndexedItem(fx.id, []string{"1"})
	require.ErrorIs(t, err, kvstore.ErrNotFound)

	var seen []model.DecodedLog
	result, err := fx.indexer.ScanStep(context.Background(), fx.id, func(_ context.Context, logs []model.DecodedLog) error {
		seen = append(seen, logs...)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(110), result.Range.To)
	require.Len(t, seen, 1)
	require.Equal(t, 1, calls)
}

func TestScanStepRPCFailureLeavesCheckpoint(t *testing.T) {
	source := &fakeSource{head: 200, fetchErr: errors.New("connection reset")}
	fx := newIndexerFixture(t, testStore(t), source, ChainConfig{MaxBlockRange: 10})

	_, err := fx.indexer.ScanStep(context.Background(), fx.id, nil)
	require.Error(t, err)
	require.False(t, IsFatal(err))

	synced, err := fx.indexer.LastSynced(fx.id)
	require.NoError(t, err)
	require.Equal(t, uint64(100), synced)
}

func TestScanStepDecodeFailureIsFatal(t *testing.T) {
	broken := depositLog(t, 105, 0, 1)
	broken.Data = broken.Data[:8]
	source := &fakeSource{head: 200, logs: []types.Log{broken}}
	fx := newIndexerFixture(t, testStore(t), source, ChainConfig{MaxBlockRange: 10})

	_, err := fx.indexer.ScanStep(context.Background(), fx.id, nil)
	require.ErrorIs(t, err, ErrSignatureCollision)
	require.True(t, IsFatal(err))
}

type flakyDecoder struct {
	*ABIDecoder
	failures int
}

func (d *flakyDecoder) Decode(ctx context.Context, log types.Log) (model.Fields, error) {
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("receipt: dial tcp: i/o timeout")
	}
	return d.ABIDecoder.Decode(ctx, log)
}

func TestScanStepDecoderIOErrorIsRetryable(t *testing.T) {
	source := &fakeSource{head: 200, logs: []types.Log{depositLog(t, 105, 0, 1)}}
	db := NewDB(testStore(t), "test", map[uint64]uint64{testChainID: 100})
	idx := New(db,
		map[uint64]LogSource{testChainID: source},
		map[uint64]ChainConfig{testChainID: {MaxBlockRange: 10}},
		nil,
	)
	event := testEvent(t)
	id, err := idx.Register(Registration{
		Filter:        Filter{ChainID: testChainID, EventSignature: event.ID, ContractAddress: testContract},
		Decoder:       &flakyDecoder{ABIDecoder: NewABIDecoder(event), failures: 1},
		SecondaryKeys: MustFieldKeys(event, "nonce"),
	})
	require.NoError(t, err)

	_, err = idx.ScanStep(context.Background(), id, nil)
	require.Error(t, err)
	require.False(t, IsFatal(err))
	require.False(t, errors.Is(err, ErrSignatureCollision))

	synced, err := idx.LastSynced(id)
	require.NoError(t, err)
	require.Equal(t, uint64(100), synced)

	result, err := idx.ScanStep(context.Background(), id, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.Logs)
	synced, err = idx.LastSynced(id)
	require.NoError(t, err)
	require.Equal(t, uint64(110), synced)
}

func TestScanStepSkipsRemovedLogs(t *testing.T) {
	removed := depositLog(t, 105, 0, 1)
	removed.Removed = true
	source := &fakeSource{head: 200, logs: []types.Log{removed, depositLog(t, 106, 0, 2)}}
	fx := newIndexerFixture(t, testStore(t), source, ChainConfig{MaxBlockRange: 10})

	result, err := fx.indexer.ScanStep(context.Background(), fx.id, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.Logs)

	_, err = fx.indexer.GetIndexedItem(fx.id, []string{"1"})
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestRegisterErrors(t *testing.T) {
	source := &fakeSource{head: 200}
	fx := newIndexerFixture(t, testStore(t), source, ChainConfig{MaxBlockRange: 10})
	event := testEvent(t)

	_, err := fx.indexer.Register(Registration{
		Filter:        Filter{ChainID: testChainID, EventSignature: event.ID, ContractAddress: testContract},
		Decoder:       NewABIDecoder(event),
		SecondaryKeys: MustFieldKeys(event, "nonce"),
	})
	require.ErrorIs(t, err, ErrDuplicateFilter)

	_, err = fx.indexer.Register(Registration{
		Filter:        Filter{ChainID: 99, EventSignature: event.ID, ContractAddress: testContract},
		Decoder:       NewABIDecoder(event),
		SecondaryKeys: MustFieldKeys(event, "nonce"),
	})
	require.ErrorIs(t, err, ErrUnknownChain)

	_, err = fx.indexer.ScanStep(context.Background(), "0xmissing", nil)
	require.ErrorIs(t, err, ErrUnknownFilter)
	require.Equal(t, []string{fx.id}, fx.indexer.Filters())
}
