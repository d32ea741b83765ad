package bridge

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Linea inbox status values.
const (
	lineaStatusUnknown   = 0
	lineaStatusClaimable = 1
	lineaStatusClaimed   = 2
)

// LineaConfig holds the message service contracts of a Linea deployment.
type LineaConfig struct {
	L1MessageService common.Address
	L2MessageService common.Address
}

type lineaBridge struct {
	cfg LineaConfig
	l1  Side
	l2  Side
}

// NewLinea returns a ChainBridge for Linea native message passing.
func NewLinea(cfg LineaConfig, l1, l2 Side, logger *zap.Logger) *ChainBridge {
	b := newChainBridge(FamilyLinea, logger)
	b.linea = &lineaBridge{cfg: cfg, l1: l1, l2: l2}
	return b
}

type lineaMessage struct {
	from     common.Address
	to       common.Address
	fee      *big.Int
	value    *big.Int
	nonce    *big.Int
	calldata []byte
	hash     common.Hash
}

func (l *lineaBridge) relay(ctx context.Context, direction Direction, txHash common.Hash) (*types.Transaction, error) {
	var (
		src, dst               Side
		srcService, dstService common.Address
		statusMethod           string
	)
	switch direction {
	case L1ToL2:
		src, dst = l.l1, l.l2
		srcService, dstService = l.cfg.L1MessageService, l.cfg.L2MessageService
		statusMethod = "inboxL1L2MessageStatus"
	case L2ToL1:
		src, dst = l.l2, l.l1
		srcService, dstService = l.cfg.L2MessageService, l.cfg.L1MessageService
		statusMethod = "inboxL2L1MessageStatus"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDirection, direction)
	}

	parsed, err := lineaMessageServiceABI.get()
	if err != nil {
		return nil, err
	}

	receipt, err := sourceReceipt(ctx, src, txHash)
	if err != nil {
		return nil, err
	}
	logs := logsOf(receipt, srcService, parsed.Events["MessageSent"].ID)
	if len(logs) == 0 {
		return nil, fmt.Errorf("%w: tx %s on %s", ErrMessageNotFound, txHash.Hex(), srcService.Hex())
	}
	msg, err := decodeLineaMessage(logs[0])
	if err != nil {
		return nil, err
	}

	status, err := callUint(ctx, dst.Backend, parsed, dstService, statusMethod, msg.hash)
	if err != nil {
		return nil, err
	}
	switch status.Uint64() {
	case lineaStatusClaimable:
	case lineaStatusClaimed:
		return nil, fmt.Errorf("%w: message %s", ErrAlreadyRelayed, msg.hash.Hex())
	case lineaStatusUnknown:
		return nil, fmt.Errorf("%w: message %s not anchored on destination", ErrNotClaimable, msg.hash.Hex())
	default:
		return nil, fmt.Errorf("%w: message %s has status %s", ErrNotClaimable, msg.hash.Hex(), status)
	}

	feeRecipient := common.Address{}
	if dst.Signer != nil {
		feeRecipient = dst.Signer.From
	}
	return transact(ctx, dst, parsed, dstService, "claimMessage",
		msg.from, msg.to, msg.fee, msg.value, feeRecipient, msg.calldata, msg.nonce)
}

func decodeLineaMessage(log *types.Log) (lineaMessage, error) {
	parsed, err := lineaMessageServiceABI.get()
	if err != nil {
		return lineaMessage{}, err
	}
	if len(log.Topics) != 4 {
		return lineaMessage{}, fmt.Errorf("linea MessageSent: expected 4 topics, got %d", len(log.Topics))
	}
	values := make(map[string]interface{})
	if err := parsed.Events["MessageSent"].Inputs.NonIndexed().UnpackIntoMap(values, log.Data); err != nil {
		return lineaMessage{}, fmt.Errorf("unpack linea MessageSent: %w", err)
	}

	msg := lineaMessage{
		from: common.BytesToAddress(log.Topics[1].Bytes()),
		to:   common.BytesToAddress(log.Topics[2].Bytes()),
		hash: log.Topics[3],
	}
	var ok bool
	if msg.fee, ok = values["_fee"].(*big.Int); !ok {
		return lineaMessage{}, fmt.Errorf("linea MessageSent: bad _fee")
	}
	if msg.value, ok = values["_value"].(*big.Int); !ok {
		return lineaMessage{}, fmt.Errorf("linea MessageSent: bad _value")
	}
	if msg.nonce, ok = values["_nonce"].(*big.Int); !ok {
		return lineaMessage{}, fmt.Errorf("linea MessageSent: bad _nonce")
	}
	if msg.calldata, ok = values["_calldata"].([]byte); !ok {
		return lineaMessage{}, fmt.Errorf("linea MessageSent: bad _calldata")
	}
	return msg, nil
}
