package model

import (
	"encoding/json"
	"fmt"
)

// MessageState is the lifecycle state a message record represents.
type MessageState string

const (
	MessageSent    MessageState = "sent"
	MessageRelayed MessageState = "relayed"
)

// Message is a cross-chain message record. Implemented by SentMessage and
// RelayedMessage only.
type Message interface {
	State() MessageState
	isMessage()
}

// SentMessage is recorded when a transfer message is emitted on the source chain.
type SentMessage struct {
	Message            string `json:"message"`
	Nonce              uint64 `json:"nonce"`
	SourceChainID      uint64 `json:"source_chain_id"`
	DestinationChainID uint64 `json:"destination_chain_id"`
	SentTxHash         string `json:"sent_tx_hash"`
	SentTimestampMs    uint64 `json:"sent_timestamp_ms"`
}

func (SentMessage) State() MessageState { return MessageSent }
func (SentMessage) isMessage()          {}

// RelayedMessage is recorded when a message is received on the destination chain.
type RelayedMessage struct {
	Message            string `json:"message"`
	Nonce              uint64 `json:"nonce"`
	DestinationChainID uint64 `json:"destination_chain_id"`
	RelayTxHash        string `json:"relay_tx_hash"`
	RelayTimestampMs   uint64 `json:"relay_timestamp_ms"`
}

func (RelayedMessage) State() MessageState { return MessageRelayed }
func (RelayedMessage) isMessage()          {}

type messageEnvelope struct {
	State   MessageState    `json:"state"`
	Sent    *SentMessage    `json:"sent,omitempty"`
	Relayed *RelayedMessage `json:"relayed,omitempty"`
}

// MarshalMessage encodes a message with its state tag.
func MarshalMessage(msg Message) ([]byte, error) {
	env := messageEnvelope{}
	switch m := msg.(type) {
	case SentMessage:
		env.State, env.Sent = MessageSent, &m
	case *SentMessage:
		env.State, env.Sent = MessageSent, m
	case RelayedMessage:
		env.State, env.Relayed = MessageRelayed, &m
	case *RelayedMessage:
		env.State, env.Relayed = MessageRelayed, m
	default:
		return nil, fmt.Errorf("unsupported message type %T", msg)
	}
	return json.Marshal(env)
}

// UnmarshalMessage decodes a message written by MarshalMessage.
func UnmarshalMessage(data []byte) (Message, error) {
	var env messageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	switch env.State {
	case MessageSent:
		if env.Sent == nil {
			return nil, fmt.Errorf("sent message body missing")
		}
		return *env.Sent, nil
	case MessageRelayed:
		if env.Relayed == nil {
			return nil, fmt.Errorf("relayed message body missing")
		}
		return *env.Relayed, nil
	default:
		return nil, fmt.Errorf("unknown message state %q", env.State)
	}
}
