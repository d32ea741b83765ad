package model

import "fmt"

// Fields holds decoded event arguments in canonical string form: integers in
// decimal, addresses in checksum hex, bytes in 0x-prefixed hex.
type Fields map[string]string

// Get returns the field value or an error naming the missing field.
func (f Fields) Get(name string) (string, error) {
	value, ok := f[name]
	if !ok {
		return "", fmt.Errorf("decoded field %q missing", name)
	}
	return value, nil
}

// LogContext is the chain context a log was observed in.
type LogContext struct {
	ChainID         uint64 `json:"chain_id"`
	BlockNumber     uint64 `json:"block_number"`
	TransactionHash string `json:"transaction_hash"`
	Timestamp       uint64 `json:"timestamp"`
}

// DecodedLog is a raw log with its decoded fields and chain context.
// Values are never mutated after the indexer builds them.
type DecodedLog struct {
	Log     LogRecord  `json:"log"`
	Decoded Fields     `json:"decoded"`
	Context LogContext `json:"context"`
}
