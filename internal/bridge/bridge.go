package bridge

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Family is the claim protocol of a chain.
type Family string

const (
	FamilyLinea   Family = "linea"
	FamilyPolygon Family = "polygon"
	FamilyCCTP    Family = "cctp"
)

// ParseFamily validates a family name.
func ParseFamily(name string) (Family, error) {
	switch f := Family(name); f {
	case FamilyLinea, FamilyPolygon, FamilyCCTP:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFamily, name)
}

// Direction is the direction of a relay.
type Direction string

const (
	L1ToL2 Direction = "l1-to-l2"
	L2ToL1 Direction = "l2-to-l1"
)

// ParseDirection validates a direction name.
func ParseDirection(name string) (Direction, error) {
	switch d := Direction(name); d {
	case L1ToL2, L2ToL1:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedDirection, name)
}

// Backend is the RPC surface a bridge needs on one chain.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Side is one end of a bridge: the chain backend and the signer used to submit
// claims on that chain. Signer may be nil for a side that only serves as a
// message source.
type Side struct {
	Backend Backend
	Signer  *bind.TransactOpts
}

type relayer interface {
	relay(ctx context.Context, direction Direction, txHash common.Hash) (*types.Transaction, error)
}

// ChainBridge relays cross-domain messages for one chain family. The variant
// is fixed at construction.
type ChainBridge struct {
	family  Family
	linea   *lineaBridge
	polygon *polygonBridge
	cctp    *cctpBridge
	logger  *zap.Logger
}

// Family returns the claim protocol of the bridge.
func (b *ChainBridge) Family() Family {
	return b.family
}

// RelayL1ToL2Message claims on L2 the message emitted by an L1 transaction.
func (b *ChainBridge) RelayL1ToL2Message(ctx context.Context, l1TxHash common.Hash) (*types.Transaction, error) {
	return b.Relay(ctx, L1ToL2, l1TxHash)
}

// RelayL2ToL1Message claims on L1 the message emitted by an L2 transaction.
func (b *ChainBridge) RelayL2ToL1Message(ctx context.Context, l2TxHash common.Hash) (*types.Transaction, error) {
	return b.Relay(ctx, L2ToL1, l2TxHash)
}

// Relay dispatches to the family variant.
func (b *ChainBridge) Relay(ctx context.Context, direction Direction, txHash common.Hash) (*types.Transaction, error) {
	var r relayer
	switch b.family {
	case FamilyLinea:
		r = b.linea
	case FamilyPolygon:
		r = b.polygon
	case FamilyCCTP:
		r = b.cctp
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, b.family)
	}

	logger := b.logger.With(
		zap.String("family", string(b.family)),
		zap.String("direction", string(direction)),
		zap.String("tx_hash", txHash.Hex()),
	)

	tx, err := r.relay(ctx, direction, txHash)
	observeRelay(b.family, direction, err)
	if err != nil {
		logger.Warn("relay failed", zap.Error(err), zap.Bool("retryable", IsRetryable(err)))
		return nil, err
	}
	logger.Info("relay submitted", zap.String("claim_tx", tx.Hash().Hex()))
	return tx, nil
}

func newChainBridge(family Family, logger *zap.Logger) *ChainBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainBridge{family: family, logger: logger}
}

func sourceReceipt(ctx context.Context, side Side, txHash common.Hash) (*types.Receipt, error) {
	if side.Backend == nil {
		return nil, fmt.Errorf("source backend is not configured")
	}
	receipt, err := side.Backend.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("source receipt %s: %w", txHash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: source tx %s reverted", ErrMessageNotFound, txHash.Hex())
	}
	return receipt, nil
}

func logsOf(receipt *types.Receipt, address common.Address, topic0 common.Hash) []*types.Log {
	var out []*types.Log
	for _, log := range receipt.Logs {
		if log.Address == address && len(log.Topics) > 0 && log.Topics[0] == topic0 {
			out = append(out, log)
		}
	}
	return out
}

func callUint(ctx context.Context, backend Backend, parsed abi.ABI, address common.Address, method string, args ...interface{}) (*big.Int, error) {
	contract := bind.NewBoundContract(address, parsed, backend, backend, backend)
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, address.Hex(), err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("call %s: expected one output, got %d", method, len(out))
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("call %s: unexpected output type %T", method, out[0])
	}
	return value, nil
}

func transact(ctx context.Context, side Side, parsed abi.ABI, address common.Address, method string, args ...interface{}) (*types.Transaction, error) {
	if side.Backend == nil || side.Signer == nil {
		return nil, fmt.Errorf("destination signer is not configured")
	}
	opts := *side.Signer
	opts.Context = ctx
	contract := bind.NewBoundContract(address, parsed, side.Backend, side.Backend, side.Backend)
	tx, err := contract.Transact(&opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("submit %s on %s: %w", method, address.Hex(), err)
	}
	return tx, nil
}
