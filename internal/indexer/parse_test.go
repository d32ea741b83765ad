package indexer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestParseAddresses(t *testing.T) {
	got, err := ParseAddresses([]string{" 0x5fbdb2315678afecb367f032d93f642f64180aa3 ", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != testContract {
		t.Fatalf("unexpected addresses: %v", got)
	}
	if _, err := ParseAddresses([]string{"0x1234"}); err == nil {
		t.Fatalf("expected error for short address")
	}
}

func TestParseHash(t *testing.T) {
	want := common.HexToHash("0x01")
	got, err := ParseHash(want.Hex())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected %s, got %s", want.Hex(), got.Hex())
	}
	if _, err := ParseHash("0x01"); err == nil {
		t.Fatalf("expected error for short hash")
	}
	if _, err := ParseHash("zz"); err == nil {
		t.Fatalf("expected error for invalid hex")
	}
}
