package indexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"bridgeScope/internal/kvstore"
	"bridgeScope/internal/model"
)

func TestInitializeIndexerKeepsExistingCheckpoint(t *testing.T) {
	store := testStore(t)

	db := NewDB(store, "test", map[uint64]uint64{1: 100})
	require.NoError(t, db.NewIndexerDB("filter", nonceKey()))
	require.NoError(t, db.InitializeIndexer("filter", 1))
	require.NoError(t, db.InitializeIndexer("filter", 1))

	synced, err := db.GetLastBlockSynced("filter")
	require.NoError(t, err)
	require.Equal(t, uint64(100), synced)

	require.NoError(t, db.PutIndexedItems("filter", 250, nil))

	restarted := NewDB(store, "test", map[uint64]uint64{1: 5})
	require.NoError(t, restarted.NewIndexerDB("filter", nonceKey()))
	require.NoError(t, restarted.InitializeIndexer("filter", 1))

	synced, err = restarted.GetLastBlockSynced("filter")
	require.NoError(t, err)
	require.Equal(t, uint64(250), synced)
}

func TestInitializeIndexerUnknownChain(t *testing.T) {
	db := NewDB(testStore(t), "test", map[uint64]uint64{1: 100})
	require.NoError(t, db.NewIndexerDB("filter", nonceKey()))

	err := db.InitializeIndexer("filter", 7)
	require.ErrorIs(t, err, ErrUnknownChain)
	require.True(t, IsFatal(err))
}

func TestNewIndexerDBRejectsDuplicates(t *testing.T) {
	db := NewDB(testStore(t), "test", map[uint64]uint64{1: 0})
	require.NoError(t, db.NewIndexerDB("filter", nonceKey()))

	err := db.NewIndexerDB("filter", nonceKey())
	require.ErrorIs(t, err, ErrDuplicateFilter)
}

func TestNewIndexerDBValidatesKeys(t *testing.T) {
	db := NewDB(testStore(t), "test", nil)

	require.ErrorIs(t, db.NewIndexerDB("a", nil), ErrInvalidSecondary)
	require.ErrorIs(t, db.NewIndexerDB("b", []SecondaryKey{{Name: "nonce"}}), ErrInvalidSecondary)

	dup := append(nonceKey(), nonceKey()...)
	require.ErrorIs(t, db.NewIndexerDB("c", dup), ErrInvalidSecondary)
}

func TestGetLastBlockSyncedMissingCheckpoint(t *testing.T) {
	db := NewDB(testStore(t), "test", map[uint64]uint64{1: 0})
	require.NoError(t, db.NewIndexerDB("filter", nonceKey()))

	_, err := db.GetLastBlockSynced("filter")
	require.ErrorIs(t, err, ErrCheckpointMissing)
	require.True(t, IsFatal(err))

	_, err = db.GetLastBlockSynced("other")
	require.ErrorIs(t, err, ErrUnknownFilter)
}

func TestPutIndexedItemsRoundTrip(t *testing.T) {
	db := NewDB(testStore(t), "test", map[uint64]uint64{1: 100})
	require.NoError(t, db.NewIndexerDB("filter", nonceKey()))
	require.NoError(t, db.InitializeIndexer("filter", 1))

	logs := []model.DecodedLog{decodedLog(1), decodedLog(2)}
	require.NoError(t, db.PutIndexedItems("filter", 110, logs))

	got, err := db.GetIndexedItem("filter", []string{"2"})
	require.NoError(t, err)
	require.Equal(t, logs[1], got)

	_, err = db.GetIndexedItem("filter", []string{"3"})
	require.ErrorIs(t, err, kvstore.ErrNotFound)

	_, err = db.GetIndexedItem("filter", []string{"1", "2"})
	require.ErrorIs(t, err, ErrInvalidKeyValue)
}

func TestPutIndexedItemsIdempotent(t *testing.T) {
	db := NewDB(testStore(t), "test", map[uint64]uint64{1: 100})
	require.NoError(t, db.NewIndexerDB("filter", nonceKey()))
	require.NoError(t, db.InitializeIndexer("filter", 1))

	logs := []model.DecodedLog{decodedLog(1)}
	require.NoError(t, db.PutIndexedItems("filter", 110, logs))
	first, err := db.GetIndexedItem("filter", []string{"1"})
	require.NoError(t, err)

	require.NoError(t, db.PutIndexedItems("filter", 110, logs))
	second, err := db.GetIndexedItem("filter", []string{"1"})
	require.NoError(t, err)
	require.Equal(t, first, second)

	synced, err := db.GetLastBlockSynced("filter")
	require.NoError(t, err)
	require.Equal(t, uint64(110), synced)
}

func TestPutIndexedItemsRejectsRegression(t *testing.T) {
	db := NewDB(testStore(t), "test", map[uint64]uint64{1: 100})
	require.NoError(t, db.NewIndexerDB("filter", nonceKey()))
	require.NoError(t, db.InitializeIndexer("filter", 1))

	err := db.PutIndexedItems("filter", 99, []model.DecodedLog{decodedLog(1)})
	require.ErrorIs(t, err, ErrCheckpointRegression)

	_, err = db.GetIndexedItem("filter", []string{"1"})
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestPutIndexedItemsRejectsInvalidValuesAtomically(t *testing.T) {
	db := NewDB(testStore(t), "test", map[uint64]uint64{1: 100})
	require.NoError(t, db.NewIndexerDB("filter", nonceKey()))
	require.NoError(t, db.InitializeIndexer("filter", 1))

	bad := decodedLog(2)
	bad.Decoded["nonce"] = "2!3"
	err := db.PutIndexedItems("filter", 120, []model.DecodedLog{decodedLog(1), bad})
	require.ErrorIs(t, err, ErrInvalidKeyValue)

	empty := decodedLog(3)
	empty.Decoded["nonce"] = ""
	require.ErrorIs(t, db.PutIndexedItems("filter", 120, []model.DecodedLog{empty}), ErrInvalidKeyValue)

	missing := decodedLog(4)
	delete(missing.Decoded, "nonce")
	require.ErrorIs(t, db.PutIndexedItems("filter", 120, []model.DecodedLog{missing}), ErrInvalidKeyValue)

	synced, err := db.GetLastBlockSynced("filter")
	require.NoError(t, err)
	require.Equal(t, uint64(100), synced)
	_, err = db.GetIndexedItem("filter", []string{"1"})
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestCompositeKeyOrder(t *testing.T) {
	db := NewDB(testStore(t), "test", map[uint64]uint64{1: 0})
	keys := []SecondaryKey{
		{Name: "domain", Value: func(model.DecodedLog) (string, error) { return "42", nil }},
		{Name: "nonce", Value: func(log model.DecodedLog) (string, error) { return log.Decoded.Get("nonce") }},
	}
	require.NoError(t, db.NewIndexerDB("filter", keys))
	require.NoError(t, db.InitializeIndexer("filter", 1))
	require.NoError(t, db.PutIndexedItems("filter", 10, []model.DecodedLog{decodedLog(9)}))

	_, err := db.GetIndexedItem("filter", []string{"42", "9"})
	require.NoError(t, err)
	_, err = db.GetIndexedItem("filter", []string{"9", "42"})
	require.ErrorIs(t, err, kvstore.ErrNotFound)

	names, err := db.SecondaryKeyNames("filter")
	require.NoError(t, err)
	require.Equal(t, []string{"domain", "nonce"}, names)
}
