package indexer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestFilterIDIsContentHash(t *testing.T) {
	sig := crypto.Keccak256Hash([]byte("MessageSent(bytes)"))
	addr := common.HexToAddress("0x0a992d191DEeC32aFe36203Ad87D7d289a738F81")

	f := Filter{ChainID: 1, EventSignature: sig, ContractAddress: addr}
	same := Filter{ChainID: 1, EventSignature: sig, ContractAddress: common.HexToAddress("0x0a992d191deec32afe36203ad87d7d289a738f81")}

	require.Equal(t, f.ID(), same.ID())
	require.Len(t, f.ID(), 66)

	other := Filter{ChainID: 10, EventSignature: sig, ContractAddress: addr}
	require.NotEqual(t, f.ID(), other.ID())
}
