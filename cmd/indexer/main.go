package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bridgeScope/internal/chain"
	"bridgeScope/internal/config"
	"bridgeScope/internal/indexer"
	"bridgeScope/internal/kvstore"
	"bridgeScope/internal/message"
	"bridgeScope/internal/model"
	"bridgeScope/internal/provider"
	"bridgeScope/internal/storage"
	"bridgeScope/internal/storage/postgres"
	"bridgeScope/internal/watcher"
)

const messagesSublevel = "messages"

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Cross-chain bridge event indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Index CCTP transfer events and track message state",
		RunE:  runIndexer,
	}

	runCmd.Flags().String("db-path", "./data/indexer.db", "LevelDB directory")
	runCmd.Flags().String("out", "", "optional JSONL message feed path")
	runCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for message records")
	runCmd.Flags().String("metrics-addr", "", "address to serve /metrics on (empty disables)")
	runCmd.Flags().Duration("poll-interval", 12*time.Second, "delay between scans once a filter caught up")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts per scan step")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().Bool("once", false, "exit once every filter caught up with the chain head")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)
	root.AddCommand(newRelayCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newMessageCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	once, _ := cmd.Flags().GetBool("once")

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := kvstore.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	endpoints := make([]chain.Endpoint, 0, len(cfg.Chains))
	for _, c := range cfg.Chains {
		endpoints = append(endpoints, chain.Endpoint{ChainID: c.ID, RPCURL: c.RPC})
	}
	registry, err := chain.Dial(ctx, endpoints, logger)
	if err != nil {
		return err
	}
	defer registry.Close()

	sources := make(map[uint64]indexer.LogSource, len(cfg.Chains))
	timestampers := make(map[uint64]message.BlockTimestamper, len(cfg.Chains))
	chainCfgs := make(map[uint64]indexer.ChainConfig, len(cfg.Chains))
	for _, c := range cfg.Chains {
		client, err := registry.Get(c.ID)
		if err != nil {
			return err
		}
		sources[c.ID] = client
		timestampers[c.ID] = client
		chainCfgs[c.ID] = indexer.ChainConfig{MaxBlockRange: c.MaxBlockRange, Confirmations: c.Confirmations}
	}

	db := indexer.NewDB(store, cfg.DBName, cfg.DefaultStartBlocks())
	idx := indexer.New(db, sources, chainCfgs, logger)

	for _, cctp := range cfg.CCTP {
		client, err := registry.Get(cctp.ChainID)
		if err != nil {
			return err
		}
		registrations, err := cctpRegistrations(cctp, client)
		if err != nil {
			return err
		}
		for _, reg := range registrations {
			if _, err := idx.Register(reg); err != nil {
				return fmt.Errorf("register chain %d: %w", cctp.ChainID, err)
			}
		}
	}

	var sinks []storage.Sink
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return err
		}
		sinks = append(sinks, pg)
	}
	defer func() {
		for _, sink := range sinks {
			if err := sink.Close(); err != nil {
				logger.Warn("close sink", zap.Error(err))
			}
		}
	}()

	stores := []provider.Store[model.Message]{message.NewLevelStore(store.Sublevel(messagesSublevel))}
	for _, sink := range sinks {
		stores = append(stores, sink)
	}

	dp, err := message.NewDataProvider(timestampers, logger, stores...)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, logger)
		defer shutdown()
	}

	logger.Info("indexer start",
		zap.String("db_path", cfg.DBPath),
		zap.Uint64s("chains", registry.ChainIDs()),
		zap.Int("filters", len(idx.Filters())),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.Duration("poll_interval", cfg.PollInterval),
	)

	w := watcher.New(idx, dp.Handle, watcher.Config{
		PollInterval: cfg.PollInterval,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Once:         once,
	}, logger)
	return w.Run(ctx)
}

func cctpRegistrations(cctp config.CCTPConfig, receipts message.ReceiptSource) ([]indexer.Registration, error) {
	addresses, err := indexer.ParseAddresses([]string{cctp.HopCCTP, cctp.MessageTransmitter})
	if err != nil {
		return nil, fmt.Errorf("cctp chain %d: %w", cctp.ChainID, err)
	}
	if len(addresses) != 2 {
		return nil, fmt.Errorf("cctp chain %d: hop-cctp and message-transmitter are required", cctp.ChainID)
	}
	return message.Filters(cctp.ChainID, addresses[0], addresses[1], receipts)
}

func serveMetrics(addr string, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics server start", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
