package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"bridgeScope/internal/kvstore"
	"bridgeScope/internal/model"
)

const (
	dbSuffix      = "OnchainEventIndexerDB"
	syncKeyPrefix = "sync"
)

type syncCheckpoint struct {
	SyncedBlockNumber uint64 `json:"syncedBlockNumber"`
}

type indexTable struct {
	ns   *kvstore.Namespace
	keys []SecondaryKey
}

// DB holds per-filter checkpoints and the logs each filter indexed, keyed by
// the filter's composite secondary key.
type DB struct {
	root          *kvstore.Namespace
	defaultStarts map[uint64]uint64

	mu      sync.RWMutex
	indexes map[string]*indexTable
}

// NewDB returns the indexer database rooted at the "<name>OnchainEventIndexerDB"
// namespace of store. defaultStartBlocks seeds fresh checkpoints per chain.
func NewDB(store *kvstore.Store, name string, defaultStartBlocks map[uint64]uint64) *DB {
	starts := make(map[uint64]uint64, len(defaultStartBlocks))
	for chainID, block := range defaultStartBlocks {
		starts[chainID] = block
	}
	return &DB{
		root:          store.Sublevel(name + dbSuffix),
		defaultStarts: starts,
		indexes:       make(map[string]*indexTable),
	}
}

// NewIndexerDB registers the namespace for primaryKey and its ordered list of
// secondary keys. A primary key can be registered once per process.
func (d *DB) NewIndexerDB(primaryKey string, keys []SecondaryKey) error {
	if primaryKey == "" {
		return fmt.Errorf("%w: empty primary key", ErrInvalidSecondary)
	}
	if err := validateSecondaryKeys(keys); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.indexes[primaryKey]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFilter, primaryKey)
	}
	d.indexes[primaryKey] = &indexTable{
		ns:   d.root.Sublevel(primaryKey),
		keys: append([]SecondaryKey(nil), keys...),
	}
	return nil
}

// InitializeIndexer seeds the checkpoint of primaryKey with the default start
// block of chainID. An existing checkpoint is left untouched.
func (d *DB) InitializeIndexer(primaryKey string, chainID uint64) error {
	table, err := d.table(primaryKey)
	if err != nil {
		return err
	}
	start, ok := d.defaultStarts[chainID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}

	exists, err := table.ns.Has(syncKey(primaryKey))
	if err != nil {
		return fmt.Errorf("check checkpoint %s: %w", primaryKey, err)
	}
	if exists {
		return nil
	}

	value, err := json.Marshal(syncCheckpoint{SyncedBlockNumber: start})
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := table.ns.Put(syncKey(primaryKey), value); err != nil {
		return fmt.Errorf("seed checkpoint %s: %w", primaryKey, err)
	}
	return nil
}

// GetLastBlockSynced returns the checkpoint of primaryKey. A missing checkpoint
// is a data-integrity error.
func (d *DB) GetLastBlockSynced(primaryKey string) (uint64, error) {
	table, err := d.table(primaryKey)
	if err != nil {
		return 0, err
	}
	return table.lastSynced(primaryKey)
}

// PutIndexedItems stores logs under their composite keys and advances the
// checkpoint to syncedBlockNumber in a single atomic write.
func (d *DB) PutIndexedItems(primaryKey string, syncedBlockNumber uint64, logs []model.DecodedLog) error {
	table, err := d.table(primaryKey)
	if err != nil {
		return err
	}

	current, err := table.lastSynced(primaryKey)
	if err != nil {
		return err
	}
	if syncedBlockNumber < current {
		return fmt.Errorf("%w: %s from %d to %d", ErrCheckpointRegression, primaryKey, current, syncedBlockNumber)
	}

	batch := table.ns.Batch()
	for _, log := range logs {
		key, err := compositeKey(table.keys, log)
		if err != nil {
			return fmt.Errorf("log %s/%d: %w", log.Log.TxHash, log.Log.LogIndex, err)
		}
		if key == syncKey(primaryKey) {
			return fmt.Errorf("%w: %q collides with the checkpoint key", ErrInvalidKeyValue, key)
		}
		value, err := json.Marshal(log)
		if err != nil {
			return fmt.Errorf("encode log: %w", err)
		}
		batch.Put(key, value)
	}

	checkpoint, err := json.Marshal(syncCheckpoint{SyncedBlockNumber: syncedBlockNumber})
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	batch.Put(syncKey(primaryKey), checkpoint)

	return batch.Write()
}

// GetIndexedItem looks up one log by the full ordered list of secondary key
// values. Range queries are not supported.
func (d *DB) GetIndexedItem(primaryKey string, values []string) (model.DecodedLog, error) {
	table, err := d.table(primaryKey)
	if err != nil {
		return model.DecodedLog{}, err
	}
	if len(values) != len(table.keys) {
		return model.DecodedLog{}, fmt.Errorf("%w: expected %d values, got %d", ErrInvalidKeyValue, len(table.keys), len(values))
	}
	key, err := joinKeyValues(values)
	if err != nil {
		return model.DecodedLog{}, err
	}

	raw, err := table.ns.Get(key)
	if err != nil {
		return model.DecodedLog{}, err
	}
	var log model.DecodedLog
	if err := json.Unmarshal(raw, &log); err != nil {
		return model.DecodedLog{}, fmt.Errorf("decode indexed item %s: %w", key, err)
	}
	return log, nil
}

// SecondaryKeyNames returns the declared key names of primaryKey in order.
func (d *DB) SecondaryKeyNames(primaryKey string) ([]string, error) {
	table, err := d.table(primaryKey)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(table.keys))
	for _, key := range table.keys {
		names = append(names, key.Name)
	}
	return names, nil
}

func (d *DB) table(primaryKey string) (*indexTable, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	table, ok := d.indexes[primaryKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, primaryKey)
	}
	return table, nil
}

func (t *indexTable) lastSynced(primaryKey string) (uint64, error) {
	raw, err := t.ns.Get(syncKey(primaryKey))
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0, fmt.Errorf("%w: %s", ErrCheckpointMissing, primaryKey)
	}
	if err != nil {
		return 0, fmt.Errorf("read checkpoint %s: %w", primaryKey, err)
	}
	var checkpoint syncCheckpoint
	if err := json.Unmarshal(raw, &checkpoint); err != nil {
		return 0, fmt.Errorf("decode checkpoint %s: %w", primaryKey, err)
	}
	return checkpoint.SyncedBlockNumber, nil
}

func syncKey(primaryKey string) string {
	return syncKeyPrefix + primaryKey
}
