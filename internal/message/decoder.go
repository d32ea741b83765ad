package message

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"bridgeScope/internal/indexer"
	"bridgeScope/internal/model"
)

// ReceiptSource fetches transaction receipts.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// SentDecoder decodes CCTPTransferSent logs and attaches the "message" field:
// the bytes of the MessageSent event the MessageTransmitter emitted in the
// same transaction.
type SentDecoder struct {
	transfer    *indexer.ABIDecoder
	messageSent *indexer.ABIDecoder
	transmitter common.Address
	receipts    ReceiptSource
}

// NewSentDecoder builds a SentDecoder reading receipts from receipts.
func NewSentDecoder(transmitter common.Address, receipts ReceiptSource) (*SentDecoder, error) {
	transfer, err := cctpEvent(eventTransferSent)
	if err != nil {
		return nil, err
	}
	messageSent, err := cctpEvent(eventMessageSent)
	if err != nil {
		return nil, err
	}
	return &SentDecoder{
		transfer:    indexer.NewABIDecoder(transfer),
		messageSent: indexer.NewABIDecoder(messageSent),
		transmitter: transmitter,
		receipts:    receipts,
	}, nil
}

// Decode implements indexer.Decoder.
func (d *SentDecoder) Decode(ctx context.Context, log types.Log) (model.Fields, error) {
	fields, err := d.transfer.Decode(ctx, log)
	if err != nil {
		return nil, err
	}

	receipt, err := d.receipts.TransactionReceipt(ctx, log.TxHash)
	if err != nil {
		return nil, fmt.Errorf("receipt %s: %w", log.TxHash.Hex(), err)
	}

	// The transmitter emits MessageSent before the Hop contract emits
	// CCTPTransferSent, so the closest preceding one belongs to this transfer.
	var found *types.Log
	for _, candidate := range receipt.Logs {
		if candidate.Index >= log.Index {
			break
		}
		if candidate.Address != d.transmitter || len(candidate.Topics) == 0 || candidate.Topics[0] != d.messageSent.Event().ID {
			continue
		}
		found = candidate
	}
	if found == nil {
		return nil, fmt.Errorf("%w: no MessageSent from %s before log %d in tx %s", indexer.ErrShapeMismatch, d.transmitter.Hex(), log.Index, log.TxHash.Hex())
	}

	values, err := d.messageSent.Event().Inputs.Unpack(found.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack MessageSent: %v", indexer.ErrShapeMismatch, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%w: unexpected MessageSent values: %d", indexer.ErrShapeMismatch, len(values))
	}
	message, ok := values[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected MessageSent value type %T", indexer.ErrShapeMismatch, values[0])
	}
	fields["message"] = hexutil.Encode(message)
	return fields, nil
}
