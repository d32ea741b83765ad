package indexer

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Filter selects one event of one contract on one chain.
type Filter struct {
	ChainID         uint64
	EventSignature  common.Hash
	ContractAddress common.Address
}

// ID returns the content-hash identifier of the filter. The same triple always
// maps to the same ID, independent of registration order or address casing.
func (f Filter) ID() string {
	id := strconv.FormatUint(f.ChainID, 10) +
		strings.ToLower(f.EventSignature.Hex()) +
		strings.ToLower(f.ContractAddress.Hex())
	return crypto.Keccak256Hash([]byte(id)).Hex()
}
