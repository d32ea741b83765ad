package bridge

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const lineaMessageServiceABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "_from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "_to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "_fee", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "_value", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "_nonce", "type": "uint256"},
      {"indexed": false, "internalType": "bytes", "name": "_calldata", "type": "bytes"},
      {"indexed": true, "internalType": "bytes32", "name": "_messageHash", "type": "bytes32"}
    ],
    "name": "MessageSent",
    "type": "event"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "_from", "type": "address"},
      {"internalType": "address", "name": "_to", "type": "address"},
      {"internalType": "uint256", "name": "_fee", "type": "uint256"},
      {"internalType": "uint256", "name": "_value", "type": "uint256"},
      {"internalType": "address payable", "name": "_feeRecipient", "type": "address"},
      {"internalType": "bytes", "name": "_calldata", "type": "bytes"},
      {"internalType": "uint256", "name": "_nonce", "type": "uint256"}
    ],
    "name": "claimMessage",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "bytes32", "name": "messageHash", "type": "bytes32"}],
    "name": "inboxL1L2MessageStatus",
    "outputs": [{"internalType": "uint256", "name": "messageStatus", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "bytes32", "name": "messageHash", "type": "bytes32"}],
    "name": "inboxL2L1MessageStatus",
    "outputs": [{"internalType": "uint256", "name": "messageStatus", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const polygonABIJSON = `[
  {
    "anonymous": false,
    "inputs": [{"indexed": false, "internalType": "bytes", "name": "message", "type": "bytes"}],
    "name": "MessageSent",
    "type": "event"
  },
  {
    "inputs": [{"internalType": "bytes", "name": "inputData", "type": "bytes"}],
    "name": "receiveMessage",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getLastChildBlock",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const messageTransmitterABIJSON = `[
  {
    "anonymous": false,
    "inputs": [{"indexed": false, "internalType": "bytes", "name": "message", "type": "bytes"}],
    "name": "MessageSent",
    "type": "event"
  },
  {
    "inputs": [
      {"internalType": "bytes", "name": "message", "type": "bytes"},
      {"internalType": "bytes", "name": "attestation", "type": "bytes"}
    ],
    "name": "receiveMessage",
    "outputs": [{"internalType": "bool", "name": "success", "type": "bool"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "bytes32", "name": "", "type": "bytes32"}],
    "name": "usedNonces",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

type lazyABI struct {
	raw  string
	once sync.Once
	abi  abi.ABI
	err  error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.abi, l.err = abi.JSON(strings.NewReader(l.raw))
		if l.err != nil {
			l.err = fmt.Errorf("parse abi: %w", l.err)
		}
	})
	return l.abi, l.err
}

var (
	lineaMessageServiceABI = &lazyABI{raw: lineaMessageServiceABIJSON}
	polygonABI             = &lazyABI{raw: polygonABIJSON}
	messageTransmitterABI  = &lazyABI{raw: messageTransmitterABIJSON}
)
