package bridge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// PolygonConfig holds the contracts and proof service of a Polygon PoS
// deployment.
type PolygonConfig struct {
	// L2Messenger emits MessageSent(bytes) on the child chain.
	L2Messenger common.Address
	// L1MessengerWrapper accepts receiveMessage(bytes) exit payloads.
	L1MessengerWrapper common.Address
	// RootChain reports the last child block included in a checkpoint.
	RootChain common.Address
	// ProofAPIURL is the exit payload service base, for example
	// https://proof-generator.polygon.technology/api/v1/matic.
	ProofAPIURL string
}

type polygonBridge struct {
	cfg PolygonConfig
	l1  Side
	l2  Side
	api *APIClient
}

// NewPolygon returns a ChainBridge for Polygon PoS. Only L2 to L1 relays are
// claimable; L1 to L2 messages are delivered by validator state sync.
func NewPolygon(cfg PolygonConfig, l1, l2 Side, api *APIClient, logger *zap.Logger) *ChainBridge {
	b := newChainBridge(FamilyPolygon, logger)
	if api == nil {
		api = NewAPIClient(logger, DefaultAPIRetries, DefaultAPITimeout)
	}
	b.polygon = &polygonBridge{cfg: cfg, l1: l1, l2: l2, api: api}
	return b
}

func (p *polygonBridge) relay(ctx context.Context, direction Direction, txHash common.Hash) (*types.Transaction, error) {
	if direction != L2ToL1 {
		return nil, fmt.Errorf("%w: polygon %s is delivered by state sync", ErrUnsupportedDirection, direction)
	}

	parsed, err := polygonABI.get()
	if err != nil {
		return nil, err
	}

	receipt, err := sourceReceipt(ctx, p.l2, txHash)
	if err != nil {
		return nil, err
	}
	eventSig := parsed.Events["MessageSent"].ID
	if len(logsOf(receipt, p.cfg.L2Messenger, eventSig)) == 0 {
		return nil, fmt.Errorf("%w: tx %s on %s", ErrMessageNotFound, txHash.Hex(), p.cfg.L2Messenger.Hex())
	}

	lastChildBlock, err := callUint(ctx, p.l1.Backend, parsed, p.cfg.RootChain, "getLastChildBlock")
	if err != nil {
		return nil, err
	}
	if receipt.BlockNumber == nil || lastChildBlock.Cmp(receipt.BlockNumber) < 0 {
		return nil, fmt.Errorf("%w: block %s not checkpointed (last child block %s)", ErrNotClaimable, receipt.BlockNumber, lastChildBlock)
	}

	payload, err := p.exitPayload(ctx, txHash, eventSig)
	if err != nil {
		return nil, err
	}
	return transact(ctx, p.l1, parsed, p.cfg.L1MessengerWrapper, "receiveMessage", payload)
}

type exitPayloadResponse struct {
	Message string `json:"message"`
	Result  string `json:"result"`
}

func (p *polygonBridge) exitPayload(ctx context.Context, txHash, eventSig common.Hash) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/exit-payload/%s?eventSignature=%s",
		strings.TrimRight(p.cfg.ProofAPIURL, "/"),
		txHash.Hex(),
		url.QueryEscape(eventSig.Hex()),
	)

	var resp exitPayloadResponse
	status, err := p.api.getJSON(ctx, endpoint, &resp)
	if err != nil {
		// The proof service answers 404 or 500 until the burn is provable.
		if status == http.StatusNotFound || status == http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: exit payload: %v", ErrNotClaimable, err)
		}
		return nil, fmt.Errorf("exit payload: %w", err)
	}
	payload, err := hexutil.Decode(resp.Result)
	if err != nil || len(payload) == 0 {
		return nil, fmt.Errorf("%w: exit payload not ready: %s", ErrNotClaimable, resp.Message)
	}
	return payload, nil
}
