package bridge

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

const (
	attestationComplete = "complete"
	// version(4) sourceDomain(4) destinationDomain(4) nonce(8)
	cctpHeaderLength = 20
)

// CCTPConfig holds the MessageTransmitter contracts of the two chains and the
// attestation service.
type CCTPConfig struct {
	L1MessageTransmitter common.Address
	L2MessageTransmitter common.Address
	// AttestationAPIURL is the attestation service base, for example
	// https://iris-api.circle.com.
	AttestationAPIURL string
}

type cctpBridge struct {
	cfg CCTPConfig
	l1  Side
	l2  Side
	api *APIClient
}

// NewCCTP returns a ChainBridge for attestation-gated CCTP messages.
func NewCCTP(cfg CCTPConfig, l1, l2 Side, api *APIClient, logger *zap.Logger) *ChainBridge {
	b := newChainBridge(FamilyCCTP, logger)
	if api == nil {
		api = NewAPIClient(logger, DefaultAPIRetries, DefaultAPITimeout)
	}
	b.cctp = &cctpBridge{cfg: cfg, l1: l1, l2: l2, api: api}
	return b
}

// CCTPHeader is the fixed prefix of a CCTP message.
type CCTPHeader struct {
	Version           uint32
	SourceDomain      uint32
	DestinationDomain uint32
	Nonce             uint64
}

// ParseCCTPHeader reads the header of a raw CCTP message.
func ParseCCTPHeader(message []byte) (CCTPHeader, error) {
	if len(message) < cctpHeaderLength {
		return CCTPHeader{}, fmt.Errorf("cctp message too short: %d bytes", len(message))
	}
	return CCTPHeader{
		Version:           binary.BigEndian.Uint32(message[0:4]),
		SourceDomain:      binary.BigEndian.Uint32(message[4:8]),
		DestinationDomain: binary.BigEndian.Uint32(message[8:12]),
		Nonce:             binary.BigEndian.Uint64(message[12:20]),
	}, nil
}

// UsedNonceKey is the MessageTransmitter usedNonces key:
// keccak256(abi.encodePacked(sourceDomain, nonce)).
func (h CCTPHeader) UsedNonceKey() common.Hash {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[0:4], h.SourceDomain)
	binary.BigEndian.PutUint64(buf[4:12], h.Nonce)
	return crypto.Keccak256Hash(buf)
}

func (c *cctpBridge) relay(ctx context.Context, direction Direction, txHash common.Hash) (*types.Transaction, error) {
	var (
		src, dst                       Side
		srcTransmitter, dstTransmitter common.Address
	)
	switch direction {
	case L1ToL2:
		src, dst = c.l1, c.l2
		srcTransmitter, dstTransmitter = c.cfg.L1MessageTransmitter, c.cfg.L2MessageTransmitter
	case L2ToL1:
		src, dst = c.l2, c.l1
		srcTransmitter, dstTransmitter = c.cfg.L2MessageTransmitter, c.cfg.L1MessageTransmitter
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDirection, direction)
	}

	parsed, err := messageTransmitterABI.get()
	if err != nil {
		return nil, err
	}

	receipt, err := sourceReceipt(ctx, src, txHash)
	if err != nil {
		return nil, err
	}
	event := parsed.Events["MessageSent"]
	logs := logsOf(receipt, srcTransmitter, event.ID)
	if len(logs) == 0 {
		return nil, fmt.Errorf("%w: tx %s on %s", ErrMessageNotFound, txHash.Hex(), srcTransmitter.Hex())
	}
	values, err := event.Inputs.Unpack(logs[0].Data)
	if err != nil {
		return nil, fmt.Errorf("unpack cctp MessageSent: %w", err)
	}
	message, ok := values[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected cctp MessageSent value %T", values[0])
	}
	header, err := ParseCCTPHeader(message)
	if err != nil {
		return nil, err
	}

	used, err := callUint(ctx, dst.Backend, parsed, dstTransmitter, "usedNonces", header.UsedNonceKey())
	if err != nil {
		return nil, err
	}
	if used.Sign() != 0 {
		return nil, fmt.Errorf("%w: domain %d nonce %d", ErrAlreadyRelayed, header.SourceDomain, header.Nonce)
	}

	attestation, err := c.attestation(ctx, crypto.Keccak256Hash(message))
	if err != nil {
		return nil, err
	}
	return transact(ctx, dst, parsed, dstTransmitter, "receiveMessage", message, attestation)
}

type attestationResponse struct {
	Attestation string `json:"attestation"`
	Status      string `json:"status"`
}

func (c *cctpBridge) attestation(ctx context.Context, messageHash common.Hash) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/v1/attestations/%s", strings.TrimRight(c.cfg.AttestationAPIURL, "/"), messageHash.Hex())

	var resp attestationResponse
	status, err := c.api.getJSON(ctx, endpoint, &resp)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: attestation for %s not found", ErrNotClaimable, messageHash.Hex())
		}
		return nil, fmt.Errorf("attestation: %w", err)
	}
	if resp.Status != attestationComplete {
		return nil, fmt.Errorf("%w: attestation for %s is %q", ErrNotClaimable, messageHash.Hex(), resp.Status)
	}
	attestation, err := hexutil.Decode(resp.Attestation)
	if err != nil {
		return nil, fmt.Errorf("decode attestation: %w", err)
	}
	return attestation, nil
}
