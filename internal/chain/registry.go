package chain

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Endpoint describes how to reach one chain.
type Endpoint struct {
	ChainID uint64
	RPCURL  string
}

// Registry holds one Client per chain ID.
type Registry struct {
	clients map[uint64]*Client
}

// Dial connects to every endpoint. On failure the already-opened clients are closed.
func Dial(ctx context.Context, endpoints []Endpoint, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{clients: make(map[uint64]*Client, len(endpoints))}
	for _, ep := range endpoints {
		if ep.RPCURL == "" {
			r.Close()
			return nil, fmt.Errorf("rpc url is required for chain %d", ep.ChainID)
		}
		if _, ok := r.clients[ep.ChainID]; ok {
			r.Close()
			return nil, fmt.Errorf("duplicate endpoint for chain %d", ep.ChainID)
		}
		client, err := NewClient(ctx, ep.RPCURL, ep.ChainID)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("connect chain %d: %w", ep.ChainID, err)
		}
		r.clients[ep.ChainID] = client
		logger.Info("chain connected", zap.Uint64("chain_id", ep.ChainID))
	}
	return r, nil
}

// Get returns the client for chainID.
func (r *Registry) Get(chainID uint64) (*Client, error) {
	client, ok := r.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("no rpc provider configured for chain %d", chainID)
	}
	return client, nil
}

// ChainIDs returns the configured chain IDs in ascending order.
func (r *Registry) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Close closes every client.
func (r *Registry) Close() {
	for _, client := range r.clients {
		client.Close()
	}
}
