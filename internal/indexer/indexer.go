package indexer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/go-errors/errors"
	"go.uber.org/zap"

	"bridgeScope/internal/model"
)

// LogSource is the per-chain RPC surface the indexer reads from.
type LogSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FetchLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// ChainConfig holds the per-chain scan limits.
type ChainConfig struct {
	MaxBlockRange uint64
	Confirmations uint64
}

// Registration declares one filter to index.
type Registration struct {
	Filter        Filter
	Decoder       Decoder
	SecondaryKeys []SecondaryKey
}

// Handler receives the decoded logs of a scan step before they are committed.
// A returned error aborts the step and leaves the checkpoint untouched, so a
// handler sees each log at least once.
type Handler func(ctx context.Context, logs []model.DecodedLog) error

// StepResult describes the outcome of one scan step.
type StepResult struct {
	FilterID string
	Range    BlockRange
	Logs     int
	// Scanned is false when the chain head had nothing new past the
	// confirmation buffer.
	Scanned bool
}

type registeredFilter struct {
	id      string
	filter  Filter
	decoder Decoder
}

// Indexer scans registered filters in bounded block windows and commits the
// decoded logs together with the filter checkpoint.
type Indexer struct {
	db      *DB
	sources map[uint64]LogSource
	chains  map[uint64]ChainConfig
	logger  *zap.Logger

	mu      sync.RWMutex
	filters map[string]registeredFilter
}

// New builds an Indexer over db. sources and chains are keyed by chain id.
func New(db *DB, sources map[uint64]LogSource, chains map[uint64]ChainConfig, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		db:      db,
		sources: sources,
		chains:  chains,
		logger:  logger,
		filters: make(map[string]registeredFilter),
	}
}

// Register declares a filter, creates its index namespace and seeds its
// checkpoint. It returns the FilterId.
func (i *Indexer) Register(reg Registration) (string, error) {
	if reg.Decoder == nil {
		return "", fmt.Errorf("filter decoder is required")
	}
	chainID := reg.Filter.ChainID
	if _, ok := i.sources[chainID]; !ok {
		return "", fmt.Errorf("%w: no rpc source for chain %d", ErrUnknownChain, chainID)
	}
	cfg, ok := i.chains[chainID]
	if !ok {
		return "", fmt.Errorf("%w: no scan config for chain %d", ErrUnknownChain, chainID)
	}
	if cfg.MaxBlockRange == 0 {
		return "", fmt.Errorf("chain %d: max block range must be greater than zero", chainID)
	}

	id := reg.Filter.ID()
	if err := i.db.NewIndexerDB(id, reg.SecondaryKeys); err != nil {
		return "", err
	}
	if err := i.db.InitializeIndexer(id, chainID); err != nil {
		return "", err
	}

	i.mu.Lock()
	i.filters[id] = registeredFilter{id: id, filter: reg.Filter, decoder: reg.Decoder}
	i.mu.Unlock()

	i.logger.Info("filter registered",
		zap.String("filter_id", id),
		zap.Uint64("chain_id", chainID),
		zap.String("address", reg.Filter.ContractAddress.Hex()),
		zap.String("topic0", reg.Filter.EventSignature.Hex()),
	)
	return id, nil
}

// Filters returns the registered FilterIds in sorted order.
func (i *Indexer) Filters() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	ids := make([]string, 0, len(i.filters))
	for id := range i.filters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Filter returns the filter registered under id.
func (i *Indexer) Filter(id string) (Filter, error) {
	f, err := i.lookup(id)
	if err != nil {
		return Filter{}, err
	}
	return f.filter, nil
}

// LastSynced returns the checkpoint of a registered filter.
func (i *Indexer) LastSynced(id string) (uint64, error) {
	return i.db.GetLastBlockSynced(id)
}

// GetIndexedItem looks up an indexed log of a filter by its key values.
func (i *Indexer) GetIndexedItem(id string, values []string) (model.DecodedLog, error) {
	return i.db.GetIndexedItem(id, values)
}

// ScanStep scans the next window of filter id. When handler is non-nil it is
// invoked with the decoded logs before the commit.
func (i *Indexer) ScanStep(ctx context.Context, id string, handler Handler) (StepResult, error) {
	f, err := i.lookup(id)
	if err != nil {
		return StepResult{}, err
	}
	chainID := f.filter.ChainID
	source := i.sources[chainID]
	cfg := i.chains[chainID]

	lastSynced, err := i.db.GetLastBlockSynced(id)
	if err != nil {
		return StepResult{}, err
	}
	head, err := source.LatestBlockNumber(ctx)
	if err != nil {
		observeScanStep(chainID, "rpc_error")
		return StepResult{}, fmt.Errorf("chain %d: latest block: %w", chainID, err)
	}

	window, ok := NextRange(lastSynced, cfg.MaxBlockRange, head, cfg.Confirmations)
	if !ok {
		observeScanStep(chainID, "idle")
		return StepResult{FilterID: id}, nil
	}

	logger := i.logger.With(zap.String("filter_id", id), zap.Uint64("chain_id", chainID))
	logger.Debug("fetch logs", zap.Uint64("from", window.From), zap.Uint64("to", window.To))

	raw, err := source.FetchLogs(ctx, window.From, window.To,
		[]common.Address{f.filter.ContractAddress},
		[]common.Hash{f.filter.EventSignature},
	)
	if err != nil {
		observeScanStep(chainID, "rpc_error")
		return StepResult{}, fmt.Errorf("chain %d: fetch logs %d-%d: %w", chainID, window.From, window.To, err)
	}

	decoded := make([]model.DecodedLog, 0, len(raw))
	for _, log := range raw {
		if log.Removed {
			continue
		}
		fields, err := f.decoder.Decode(ctx, log)
		if err != nil {
			if ctx.Err() != nil {
				return StepResult{}, ctx.Err()
			}
			if errors.Is(err, ErrShapeMismatch) {
				observeScanStep(chainID, "decode_error")
				return StepResult{}, fmt.Errorf("%w: tx %s log %d: %v", ErrSignatureCollision, log.TxHash.Hex(), log.Index, err)
			}
			observeScanStep(chainID, "rpc_error")
			return StepResult{}, fmt.Errorf("chain %d: decode tx %s log %d: %w", chainID, log.TxHash.Hex(), log.Index, err)
		}
		ts, err := source.BlockTimestamp(ctx, log.BlockNumber)
		if err != nil {
			observeScanStep(chainID, "rpc_error")
			return StepResult{}, fmt.Errorf("chain %d: block timestamp %d: %w", chainID, log.BlockNumber, err)
		}
		decoded = append(decoded, buildDecodedLog(chainID, log, fields, ts))
	}

	if handler != nil && len(decoded) > 0 {
		if err := handler(ctx, decoded); err != nil {
			observeScanStep(chainID, "handler_error")
			return StepResult{}, fmt.Errorf("handle logs %d-%d: %w", window.From, window.To, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	if err := i.db.PutIndexedItems(id, window.To, decoded); err != nil {
		observeScanStep(chainID, "commit_error")
		return StepResult{}, fmt.Errorf("commit %d-%d: %w", window.From, window.To, err)
	}

	observeScanStep(chainID, "ok")
	observeCommit(chainID, id, window.To, len(decoded))
	logger.Info("batch complete", zap.Int("logs", len(decoded)), zap.Uint64("from", window.From), zap.Uint64("to", window.To))

	return StepResult{FilterID: id, Range: window, Logs: len(decoded), Scanned: true}, nil
}

// SyncToHead runs scan steps until the filter has caught up with the safe head.
func (i *Indexer) SyncToHead(ctx context.Context, id string, handler Handler) (int, error) {
	total := 0
	for {
		result, err := i.ScanStep(ctx, id, handler)
		if err != nil {
			return total, err
		}
		if !result.Scanned {
			return total, nil
		}
		total += result.Logs
	}
}

func (i *Indexer) lookup(id string) (registeredFilter, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	f, ok := i.filters[id]
	if !ok {
		return registeredFilter{}, fmt.Errorf("%w: %s", ErrUnknownFilter, id)
	}
	return f, nil
}
