package provider

import (
	"context"
	"fmt"

	"github.com/go-errors/errors"
	"go.uber.org/zap"

	"bridgeScope/internal/model"
)

// ErrUnrecognizedState is returned when a log matches none of the states a
// formatter knows. Nothing is written for such a log.
var ErrUnrecognizedState = errors.New("log does not map to a known state")

// Formatter maps decoded logs of one domain to state-tagged records.
type Formatter[S any, R any] interface {
	// Classify picks the state of a log from its topic alone.
	Classify(log model.DecodedLog) (S, error)
	// Format builds the record for a classified log. It may perform RPC calls.
	Format(ctx context.Context, state S, log model.DecodedLog) (R, error)
	// Identity returns the natural key of a record.
	Identity(state S, record R) (string, error)
}

// Store persists records under their identity. Writing the same record twice
// must leave the store unchanged.
type Store[R any] interface {
	Put(ctx context.Context, id string, record R) error
}

// DataProvider turns committed indexer logs into persisted domain records.
type DataProvider[S any, R any] struct {
	name      string
	formatter Formatter[S, R]
	stores    []Store[R]
	logger    *zap.Logger
}

// New builds a DataProvider writing to every store in order.
func New[S any, R any](name string, formatter Formatter[S, R], logger *zap.Logger, stores ...Store[R]) *DataProvider[S, R] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataProvider[S, R]{
		name:      name,
		formatter: formatter,
		stores:    stores,
		logger:    logger.With(zap.String("provider", name)),
	}
}

// Process classifies, formats and persists one log. It returns the identity
// the record was stored under.
func (p *DataProvider[S, R]) Process(ctx context.Context, log model.DecodedLog) (string, error) {
	state, err := p.formatter.Classify(log)
	if err != nil {
		observeProcessed(p.name, "unrecognized")
		return "", fmt.Errorf("classify tx %s log %d: %w", log.Log.TxHash, log.Log.LogIndex, err)
	}

	record, err := p.formatter.Format(ctx, state, log)
	if err != nil {
		observeProcessed(p.name, "format_error")
		return "", fmt.Errorf("format tx %s log %d: %w", log.Log.TxHash, log.Log.LogIndex, err)
	}

	id, err := p.formatter.Identity(state, record)
	if err != nil {
		observeProcessed(p.name, "format_error")
		return "", fmt.Errorf("identity tx %s log %d: %w", log.Log.TxHash, log.Log.LogIndex, err)
	}

	for _, store := range p.stores {
		if err := store.Put(ctx, id, record); err != nil {
			observeProcessed(p.name, "store_error")
			return "", fmt.Errorf("store %s: %w", id, err)
		}
	}

	observeProcessed(p.name, fmt.Sprint(state))
	p.logger.Debug("record stored", zap.String("id", id), zap.String("tx_hash", log.Log.TxHash))
	return id, nil
}

// Handle processes a batch of logs in order and stops at the first failure.
// Its signature matches indexer.Handler.
func (p *DataProvider[S, R]) Handle(ctx context.Context, logs []model.DecodedLog) error {
	for _, log := range logs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := p.Process(ctx, log); err != nil {
			return err
		}
	}
	return nil
}
