package message

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	eventTransferSent    = "CCTPTransferSent"
	eventMessageSent     = "MessageSent"
	eventMessageReceived = "MessageReceived"
)

const cctpABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint64", "name": "cctpNonce", "type": "uint64"},
      {"indexed": true, "internalType": "uint256", "name": "chainId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "recipient", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "bonderFee", "type": "uint256"}
    ],
    "name": "CCTPTransferSent",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "bytes", "name": "message", "type": "bytes"}
    ],
    "name": "MessageSent",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "caller", "type": "address"},
      {"indexed": false, "internalType": "uint32", "name": "sourceDomain", "type": "uint32"},
      {"indexed": true, "internalType": "uint64", "name": "nonce", "type": "uint64"},
      {"indexed": false, "internalType": "bytes32", "name": "sender", "type": "bytes32"},
      {"indexed": false, "internalType": "bytes", "name": "messageBody", "type": "bytes"}
    ],
    "name": "MessageReceived",
    "type": "event"
  }
]`

var (
	cctpABI     abi.ABI
	cctpABIOnce sync.Once
	cctpABIErr  error
)

// CCTPABI returns the parsed ABI of the Hop CCTP and MessageTransmitter events.
func CCTPABI() (abi.ABI, error) {
	cctpABIOnce.Do(func() {
		cctpABI, cctpABIErr = abi.JSON(strings.NewReader(cctpABIJSON))
	})
	return cctpABI, cctpABIErr
}

func cctpEvent(name string) (abi.Event, error) {
	parsed, err := CCTPABI()
	if err != nil {
		return abi.Event{}, fmt.Errorf("parse cctp abi: %w", err)
	}
	event, ok := parsed.Events[name]
	if !ok {
		return abi.Event{}, fmt.Errorf("event %s not found in cctp abi", name)
	}
	return event, nil
}
