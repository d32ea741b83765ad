package indexer

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"bridgeScope/internal/model"
)

func buildLogRecord(chainID uint64, log types.Log) model.LogRecord {
	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		TxIndex:     uint64(log.TxIndex),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(log.Data),
		Removed:     log.Removed,
	}
}

func buildDecodedLog(chainID uint64, log types.Log, fields model.Fields, timestamp uint64) model.DecodedLog {
	return model.DecodedLog{
		Log:     buildLogRecord(chainID, log),
		Decoded: fields,
		Context: model.LogContext{
			ChainID:         chainID,
			BlockNumber:     log.BlockNumber,
			TransactionHash: log.TxHash.Hex(),
			Timestamp:       timestamp,
		},
	}
}
