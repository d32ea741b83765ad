package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const defaultMaxBlockRange = 2000

// ChainConfig describes one EVM chain the indexer reads.
type ChainConfig struct {
	ID                uint64 `mapstructure:"id"`
	RPC               string `mapstructure:"rpc"`
	DefaultStartBlock uint64 `mapstructure:"default-start-block"`
	MaxBlockRange     uint64 `mapstructure:"max-block-range"`
	Confirmations     uint64 `mapstructure:"confirmations"`
}

// CCTPConfig names the Hop CCTP and MessageTransmitter contracts on a chain.
type CCTPConfig struct {
	ChainID            uint64 `mapstructure:"chain-id"`
	HopCCTP            string `mapstructure:"hop-cctp"`
	MessageTransmitter string `mapstructure:"message-transmitter"`
}

// LineaBridgeConfig holds the Linea message service deployment.
type LineaBridgeConfig struct {
	L1ChainID        uint64 `mapstructure:"l1-chain-id"`
	L2ChainID        uint64 `mapstructure:"l2-chain-id"`
	L1MessageService string `mapstructure:"l1-message-service"`
	L2MessageService string `mapstructure:"l2-message-service"`
}

// PolygonBridgeConfig holds the Polygon PoS messenger deployment.
type PolygonBridgeConfig struct {
	L1ChainID          uint64 `mapstructure:"l1-chain-id"`
	L2ChainID          uint64 `mapstructure:"l2-chain-id"`
	L2Messenger        string `mapstructure:"l2-messenger"`
	L1MessengerWrapper string `mapstructure:"l1-messenger-wrapper"`
	RootChain          string `mapstructure:"root-chain"`
	ProofAPIURL        string `mapstructure:"proof-api-url"`
}

// CCTPBridgeConfig holds the MessageTransmitter pair used for CCTP relays.
type CCTPBridgeConfig struct {
	L1ChainID            uint64 `mapstructure:"l1-chain-id"`
	L2ChainID            uint64 `mapstructure:"l2-chain-id"`
	L1MessageTransmitter string `mapstructure:"l1-message-transmitter"`
	L2MessageTransmitter string `mapstructure:"l2-message-transmitter"`
	AttestationAPIURL    string `mapstructure:"attestation-api-url"`
}

// BridgesConfig groups the relay deployments by family.
type BridgesConfig struct {
	Linea   LineaBridgeConfig   `mapstructure:"linea"`
	Polygon PolygonBridgeConfig `mapstructure:"polygon"`
	CCTP    CCTPBridgeConfig    `mapstructure:"cctp"`
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	DBPath       string
	DBName       string
	LogLevel     string
	MetricsAddr  string
	PollInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	APIRetries   int
	APITimeout   time.Duration
	PGDSN        string
	Out          string
	PrivateKey   string
	Chains       []ChainConfig
	CCTP         []CCTPConfig
	Bridges      BridgesConfig
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("db-path", "./data/indexer.db")
	v.SetDefault("db-name", "cctp")
	v.SetDefault("log-level", "info")
	v.SetDefault("metrics-addr", "")
	v.SetDefault("poll-interval", 12*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("api-retries", 5)
	v.SetDefault("api-timeout", 30*time.Second)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		DBPath:       v.GetString("db-path"),
		DBName:       v.GetString("db-name"),
		LogLevel:     v.GetString("log-level"),
		MetricsAddr:  v.GetString("metrics-addr"),
		PollInterval: v.GetDuration("poll-interval"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		APIRetries:   v.GetInt("api-retries"),
		APITimeout:   v.GetDuration("api-timeout"),
		PGDSN:        v.GetString("pg-dsn"),
		Out:          v.GetString("out"),
		PrivateKey:   v.GetString("private-key"),
	}
	if err := v.UnmarshalKey("chains", &cfg.Chains); err != nil {
		return Config{}, fmt.Errorf("parse chains: %w", err)
	}
	if err := v.UnmarshalKey("cctp", &cfg.CCTP); err != nil {
		return Config{}, fmt.Errorf("parse cctp: %w", err)
	}
	if err := v.UnmarshalKey("bridges", &cfg.Bridges); err != nil {
		return Config{}, fmt.Errorf("parse bridges: %w", err)
	}

	for i := range cfg.Chains {
		if cfg.Chains[i].MaxBlockRange == 0 {
			cfg.Chains[i].MaxBlockRange = defaultMaxBlockRange
		}
	}

	return cfg, nil
}

// Validate checks the chain and contract tables for the run command.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db-path is required")
	}
	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one chain is required")
	}
	seen := make(map[uint64]struct{}, len(c.Chains))
	for _, chain := range c.Chains {
		if chain.ID == 0 {
			return fmt.Errorf("chain id is required")
		}
		if chain.RPC == "" {
			return fmt.Errorf("chain %d: rpc is required", chain.ID)
		}
		if _, ok := seen[chain.ID]; ok {
			return fmt.Errorf("chain %d configured twice", chain.ID)
		}
		seen[chain.ID] = struct{}{}
	}
	for _, cctp := range c.CCTP {
		if _, ok := seen[cctp.ChainID]; !ok {
			return fmt.Errorf("cctp: chain %d is not configured", cctp.ChainID)
		}
		if cctp.HopCCTP == "" || cctp.MessageTransmitter == "" {
			return fmt.Errorf("cctp: chain %d needs hop-cctp and message-transmitter", cctp.ChainID)
		}
	}
	return nil
}

// Chain returns the configuration of chain id.
func (c Config) Chain(id uint64) (ChainConfig, bool) {
	for _, chain := range c.Chains {
		if chain.ID == id {
			return chain, true
		}
	}
	return ChainConfig{}, false
}

// DefaultStartBlocks returns the per-chain seed checkpoints.
func (c Config) DefaultStartBlocks() map[uint64]uint64 {
	out := make(map[uint64]uint64, len(c.Chains))
	for _, chain := range c.Chains {
		out[chain.ID] = chain.DefaultStartBlock
	}
	return out
}
