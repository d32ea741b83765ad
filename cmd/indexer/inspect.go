package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bridgeScope/internal/config"
	"bridgeScope/internal/indexer"
	"bridgeScope/internal/kvstore"
	"bridgeScope/internal/message"
	"bridgeScope/internal/model"
	"bridgeScope/internal/storage"
	"bridgeScope/internal/storage/postgres"
)

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the checkpoint of every configured filter",
		RunE:  runStatus,
	}
	cmd.Flags().String("db-path", "./data/indexer.db", "LevelDB directory")
	return cmd
}

type filterStatus struct {
	FilterID   string   `json:"filter_id"`
	ChainID    uint64   `json:"chain_id"`
	Contract   string   `json:"contract"`
	Topic0     string   `json:"topic0"`
	Keys       []string `json:"secondary_keys"`
	LastSynced uint64   `json:"last_synced"`
	Seeded     bool     `json:"seeded"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	store, err := kvstore.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	db := indexer.NewDB(store, cfg.DBName, cfg.DefaultStartBlocks())
	encoder := json.NewEncoder(cmd.OutOrStdout())
	for _, cctp := range cfg.CCTP {
		registrations, err := cctpRegistrations(cctp, nil)
		if err != nil {
			return err
		}
		for _, reg := range registrations {
			id := reg.Filter.ID()
			if err := db.NewIndexerDB(id, reg.SecondaryKeys); err != nil {
				return err
			}
			keys, err := db.SecondaryKeyNames(id)
			if err != nil {
				return err
			}
			status := filterStatus{
				Keys:     keys,
				FilterID: id,
				ChainID:  reg.Filter.ChainID,
				Contract: reg.Filter.ContractAddress.Hex(),
				Topic0:   reg.Filter.EventSignature.Hex(),
			}
			synced, err := db.GetLastBlockSynced(id)
			switch {
			case err == nil:
				status.LastSynced, status.Seeded = synced, true
			case errors.Is(err, indexer.ErrCheckpointMissing):
			default:
				return err
			}
			if err := encoder.Encode(status); err != nil {
				return err
			}
		}
	}
	return nil
}

func newMessageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Print a stored message record",
		RunE:  runMessage,
	}
	cmd.Flags().String("db-path", "./data/indexer.db", "LevelDB directory")
	cmd.Flags().String("pg-dsn", "", "read from Postgres instead of LevelDB")
	cmd.Flags().String("jsonl", "", "print every line for the message from a JSONL feed instead")
	cmd.Flags().String("state", string(model.MessageSent), "message state (sent, relayed)")
	cmd.Flags().Uint64("chain", 0, "source chain id for sent, destination for relayed")
	cmd.Flags().Uint64("nonce", 0, "message nonce")
	return cmd
}

func runMessage(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	stateName, _ := cmd.Flags().GetString("state")
	chainID, _ := cmd.Flags().GetUint64("chain")
	nonce, _ := cmd.Flags().GetUint64("nonce")

	state := model.MessageState(stateName)
	var id string
	switch state {
	case model.MessageSent:
		id = message.SentID(chainID, nonce)
	case model.MessageRelayed:
		id = message.RelayedID(chainID, nonce)
	default:
		return fmt.Errorf("unknown state %q", stateName)
	}

	if path, _ := cmd.Flags().GetString("jsonl"); path != "" {
		records, _, err := storage.ReadJsonl(path)
		if err != nil {
			return err
		}
		if len(records[id]) == 0 {
			return fmt.Errorf("message %s not found in %s", id, path)
		}
		for _, record := range records[id] {
			out, err := model.MarshalMessage(record)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
		}
		return nil
	}

	var record model.Message
	if cfg.PGDSN != "" {
		ctx := context.Background()
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		record, err = pg.Get(ctx, state, id)
		if err != nil {
			return err
		}
	} else {
		store, err := kvstore.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		record, err = message.NewLevelStore(store.Sublevel(messagesSublevel)).Get(id)
		if err != nil {
			return err
		}
	}

	out, err := model.MarshalMessage(record)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
