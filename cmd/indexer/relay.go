package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bridgeScope/internal/bridge"
	"bridgeScope/internal/chain"
	"bridgeScope/internal/config"
	"bridgeScope/internal/indexer"
)

func newRelayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Claim a cross-domain message on its destination chain",
		RunE:  runRelay,
	}
	cmd.Flags().String("bridge", "", "chain family (linea, polygon, cctp)")
	cmd.Flags().String("direction", string(bridge.L2ToL1), "relay direction (l1-to-l2, l2-to-l1)")
	cmd.Flags().String("tx", "", "source transaction hash")
	cmd.Flags().String("private-key", "", "hex private key of the claiming account")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runRelay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	familyName, _ := cmd.Flags().GetString("bridge")
	family, err := bridge.ParseFamily(familyName)
	if err != nil {
		return err
	}
	directionName, _ := cmd.Flags().GetString("direction")
	direction, err := bridge.ParseDirection(directionName)
	if err != nil {
		return err
	}
	txInput, _ := cmd.Flags().GetString("tx")
	txHash, err := indexer.ParseHash(txInput)
	if err != nil {
		return err
	}
	if cfg.PrivateKey == "" {
		return fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l1ID, l2ID := bridgeChains(cfg.Bridges, family)
	registry, err := dialChains(ctx, cfg, logger, l1ID, l2ID)
	if err != nil {
		return err
	}
	defer registry.Close()

	l1, err := side(registry, key, l1ID)
	if err != nil {
		return err
	}
	l2, err := side(registry, key, l2ID)
	if err != nil {
		return err
	}

	b, err := buildBridge(cfg, family, l1, l2, logger)
	if err != nil {
		return err
	}

	tx, err := b.Relay(ctx, direction, txHash)
	if err != nil {
		if bridge.IsRetryable(err) {
			return fmt.Errorf("%w (retry later)", err)
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tx.Hash().Hex())
	return nil
}

func bridgeChains(bridges config.BridgesConfig, family bridge.Family) (uint64, uint64) {
	switch family {
	case bridge.FamilyLinea:
		return bridges.Linea.L1ChainID, bridges.Linea.L2ChainID
	case bridge.FamilyPolygon:
		return bridges.Polygon.L1ChainID, bridges.Polygon.L2ChainID
	case bridge.FamilyCCTP:
		return bridges.CCTP.L1ChainID, bridges.CCTP.L2ChainID
	}
	return 0, 0
}

func dialChains(ctx context.Context, cfg config.Config, logger *zap.Logger, ids ...uint64) (*chain.Registry, error) {
	endpoints := make([]chain.Endpoint, 0, len(ids))
	for _, id := range ids {
		c, ok := cfg.Chain(id)
		if !ok {
			return nil, fmt.Errorf("chain %d is not configured", id)
		}
		endpoints = append(endpoints, chain.Endpoint{ChainID: c.ID, RPCURL: c.RPC})
	}
	return chain.Dial(ctx, endpoints, logger)
}

func side(registry *chain.Registry, key *ecdsa.PrivateKey, chainID uint64) (bridge.Side, error) {
	client, err := registry.Get(chainID)
	if err != nil {
		return bridge.Side{}, err
	}
	signer, err := bind.NewKeyedTransactorWithChainID(key, new(big.Int).SetUint64(chainID))
	if err != nil {
		return bridge.Side{}, fmt.Errorf("signer for chain %d: %w", chainID, err)
	}
	return bridge.Side{Backend: client, Signer: signer}, nil
}

func buildBridge(cfg config.Config, family bridge.Family, l1, l2 bridge.Side, logger *zap.Logger) (*bridge.ChainBridge, error) {
	api := bridge.NewAPIClient(logger, cfg.APIRetries, cfg.APITimeout)
	switch family {
	case bridge.FamilyLinea:
		c := cfg.Bridges.Linea
		addrs, err := requireAddresses(c.L1MessageService, c.L2MessageService)
		if err != nil {
			return nil, fmt.Errorf("bridges.linea: %w", err)
		}
		return bridge.NewLinea(bridge.LineaConfig{L1MessageService: addrs[0], L2MessageService: addrs[1]}, l1, l2, logger), nil
	case bridge.FamilyPolygon:
		c := cfg.Bridges.Polygon
		addrs, err := requireAddresses(c.L2Messenger, c.L1MessengerWrapper, c.RootChain)
		if err != nil {
			return nil, fmt.Errorf("bridges.polygon: %w", err)
		}
		return bridge.NewPolygon(bridge.PolygonConfig{
			L2Messenger:        addrs[0],
			L1MessengerWrapper: addrs[1],
			RootChain:          addrs[2],
			ProofAPIURL:        c.ProofAPIURL,
		}, l1, l2, api, logger), nil
	case bridge.FamilyCCTP:
		c := cfg.Bridges.CCTP
		addrs, err := requireAddresses(c.L1MessageTransmitter, c.L2MessageTransmitter)
		if err != nil {
			return nil, fmt.Errorf("bridges.cctp: %w", err)
		}
		return bridge.NewCCTP(bridge.CCTPConfig{
			L1MessageTransmitter: addrs[0],
			L2MessageTransmitter: addrs[1],
			AttestationAPIURL:    c.AttestationAPIURL,
		}, l1, l2, api, logger), nil
	}
	return nil, fmt.Errorf("%w: %q", bridge.ErrUnknownFamily, family)
}

func requireAddresses(inputs ...string) ([]common.Address, error) {
	for _, input := range inputs {
		if strings.TrimSpace(input) == "" {
			return nil, fmt.Errorf("missing contract address")
		}
	}
	return indexer.ParseAddresses(inputs)
}
