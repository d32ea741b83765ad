package message

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"bridgeScope/internal/indexer"
	"bridgeScope/internal/kvstore"
	"bridgeScope/internal/model"
	"bridgeScope/internal/provider"
)

const providerName = "message"

// BlockTimestamper returns the timestamp (seconds) of a block on one chain.
type BlockTimestamper interface {
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// Formatter classifies CCTP logs into message states and builds the
// corresponding records.
type Formatter struct {
	timestampers   map[uint64]BlockTimestamper
	transferSentID string
	receivedID     string
}

// NewFormatter builds a Formatter resolving block timestamps per chain id.
func NewFormatter(timestampers map[uint64]BlockTimestamper) (*Formatter, error) {
	sent, err := cctpEvent(eventTransferSent)
	if err != nil {
		return nil, err
	}
	received, err := cctpEvent(eventMessageReceived)
	if err != nil {
		return nil, err
	}
	return &Formatter{
		timestampers:   timestampers,
		transferSentID: sent.ID.Hex(),
		receivedID:     received.ID.Hex(),
	}, nil
}

// Classify maps the event signature of log to a message state.
func (f *Formatter) Classify(log model.DecodedLog) (model.MessageState, error) {
	topic := log.Log.Topic0()
	switch {
	case strings.EqualFold(topic, f.transferSentID):
		return model.MessageSent, nil
	case strings.EqualFold(topic, f.receivedID):
		return model.MessageRelayed, nil
	}
	return "", fmt.Errorf("%w: topic0 %q", provider.ErrUnrecognizedState, topic)
}

// Format builds a SentMessage or RelayedMessage from log.
func (f *Formatter) Format(ctx context.Context, state model.MessageState, log model.DecodedLog) (model.Message, error) {
	switch state {
	case model.MessageSent:
		return f.formatSent(ctx, log)
	case model.MessageRelayed:
		return f.formatRelayed(ctx, log)
	}
	return nil, fmt.Errorf("%w: state %q", provider.ErrUnrecognizedState, state)
}

// Identity returns "sent!<sourceChainId>!<nonce>" or
// "relayed!<destinationChainId>!<nonce>".
func (f *Formatter) Identity(state model.MessageState, record model.Message) (string, error) {
	switch m := record.(type) {
	case model.SentMessage:
		return SentID(m.SourceChainID, m.Nonce), nil
	case model.RelayedMessage:
		return RelayedID(m.DestinationChainID, m.Nonce), nil
	}
	return "", fmt.Errorf("%w: record %T for state %q", provider.ErrUnrecognizedState, record, state)
}

func (f *Formatter) formatSent(ctx context.Context, log model.DecodedLog) (model.Message, error) {
	message, err := log.Decoded.Get("message")
	if err != nil {
		return nil, err
	}
	nonce, err := uintField(log.Decoded, "cctpNonce")
	if err != nil {
		return nil, err
	}
	destination, err := uintField(log.Decoded, "chainId")
	if err != nil {
		return nil, err
	}
	timestampMs, err := f.timestampMs(ctx, log)
	if err != nil {
		return nil, err
	}
	return model.SentMessage{
		Message:            message,
		Nonce:              nonce,
		SourceChainID:      log.Context.ChainID,
		DestinationChainID: destination,
		SentTxHash:         log.Context.TransactionHash,
		SentTimestampMs:    timestampMs,
	}, nil
}

// The relayed record keeps sourceDomain in DestinationChainID. A CCTP domain
// is not a chain id; see DESIGN.md.
func (f *Formatter) formatRelayed(ctx context.Context, log model.DecodedLog) (model.Message, error) {
	body, err := log.Decoded.Get("messageBody")
	if err != nil {
		return nil, err
	}
	domain, err := uintField(log.Decoded, "sourceDomain")
	if err != nil {
		return nil, err
	}
	nonce, err := uintField(log.Decoded, "nonce")
	if err != nil {
		return nil, err
	}
	timestampMs, err := f.timestampMs(ctx, log)
	if err != nil {
		return nil, err
	}
	return model.RelayedMessage{
		Message:            body,
		Nonce:              nonce,
		DestinationChainID: domain,
		RelayTxHash:        log.Context.TransactionHash,
		RelayTimestampMs:   timestampMs,
	}, nil
}

func (f *Formatter) timestampMs(ctx context.Context, log model.DecodedLog) (uint64, error) {
	source, ok := f.timestampers[log.Context.ChainID]
	if !ok {
		return 0, fmt.Errorf("%w: no block source for chain %d", indexer.ErrUnknownChain, log.Context.ChainID)
	}
	ts, err := source.BlockTimestamp(ctx, log.Context.BlockNumber)
	if err != nil {
		return 0, fmt.Errorf("chain %d: block timestamp %d: %w", log.Context.ChainID, log.Context.BlockNumber, err)
	}
	return ts * 1000, nil
}

func uintField(fields model.Fields, name string) (uint64, error) {
	raw, err := fields.Get(name)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decoded field %q: %w", name, err)
	}
	return value, nil
}

// SentID is the natural identity of a sent message.
func SentID(sourceChainID, nonce uint64) string {
	return fmt.Sprintf("%s!%d!%d", model.MessageSent, sourceChainID, nonce)
}

// RelayedID is the natural identity of a relayed message.
func RelayedID(destinationChainID, nonce uint64) string {
	return fmt.Sprintf("%s!%d!%d", model.MessageRelayed, destinationChainID, nonce)
}

// DataProvider is the message data provider.
type DataProvider = provider.DataProvider[model.MessageState, model.Message]

// Codec stores messages as tagged JSON envelopes.
var Codec = provider.CodecFuncs[model.Message]{
	EncodeFunc: model.MarshalMessage,
	DecodeFunc: model.UnmarshalMessage,
}

// NewLevelStore returns the keyed-store sink for message records.
func NewLevelStore(ns *kvstore.Namespace) *provider.LevelStore[model.Message] {
	return provider.NewLevelStore[model.Message](ns, Codec)
}

// NewDataProvider wires a Formatter to the given stores.
func NewDataProvider(timestampers map[uint64]BlockTimestamper, logger *zap.Logger, stores ...provider.Store[model.Message]) (*DataProvider, error) {
	formatter, err := NewFormatter(timestampers)
	if err != nil {
		return nil, err
	}
	return provider.New[model.MessageState, model.Message](providerName, formatter, logger, stores...), nil
}

// Filters returns the indexer registrations for the Hop CCTP contract and the
// CCTP MessageTransmitter on chainID.
func Filters(chainID uint64, hopCCTP, transmitter common.Address, receipts ReceiptSource) ([]indexer.Registration, error) {
	sentEvent, err := cctpEvent(eventTransferSent)
	if err != nil {
		return nil, err
	}
	receivedEvent, err := cctpEvent(eventMessageReceived)
	if err != nil {
		return nil, err
	}
	sentDecoder, err := NewSentDecoder(transmitter, receipts)
	if err != nil {
		return nil, err
	}

	sentKeys, err := fieldKeys(sentEvent, "cctpNonce")
	if err != nil {
		return nil, err
	}
	receivedKeys, err := fieldKeys(receivedEvent, "sourceDomain", "nonce")
	if err != nil {
		return nil, err
	}

	return []indexer.Registration{
		{
			Filter:        indexer.Filter{ChainID: chainID, EventSignature: sentEvent.ID, ContractAddress: hopCCTP},
			Decoder:       sentDecoder,
			SecondaryKeys: sentKeys,
		},
		{
			Filter:        indexer.Filter{ChainID: chainID, EventSignature: receivedEvent.ID, ContractAddress: transmitter},
			Decoder:       indexer.NewABIDecoder(receivedEvent),
			SecondaryKeys: receivedKeys,
		},
	}, nil
}

func fieldKeys(event abi.Event, names ...string) ([]indexer.SecondaryKey, error) {
	keys := make([]indexer.SecondaryKey, 0, len(names))
	for _, name := range names {
		key, err := indexer.FieldKey(event, name)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
