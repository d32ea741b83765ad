package indexer

import (
	"github.com/go-errors/errors"
)

// Configuration errors. These are never retried.
var (
	ErrDuplicateFilter    = errors.New("indexer db already exists for primary key")
	ErrUnknownFilter      = errors.New("filter is not registered")
	ErrUnknownChain       = errors.New("chain is not configured")
	ErrSignatureCollision = errors.New("log matched filter topic but failed to decode")
	ErrInvalidKeyValue    = errors.New("invalid secondary key value")
	ErrInvalidSecondary   = errors.New("invalid secondary key declaration")
)

// ErrShapeMismatch is returned by decoders when a log does not have the shape
// of the expected event. ScanStep reports it as ErrSignatureCollision; any
// other decoder error is treated as transient.
var ErrShapeMismatch = errors.New("log does not match event shape")

// Data-integrity errors. The stored state is inconsistent, not merely empty.
var (
	ErrCheckpointMissing    = errors.New("no last block synced")
	ErrCheckpointRegression = errors.New("checkpoint would move backwards")
)

var fatalErrors = []error{
	ErrDuplicateFilter,
	ErrUnknownFilter,
	ErrUnknownChain,
	ErrSignatureCollision,
	ErrInvalidKeyValue,
	ErrInvalidSecondary,
	ErrCheckpointMissing,
	ErrCheckpointRegression,
}

// IsFatal reports whether err is a configuration or data-integrity error that
// retrying the same scan step cannot fix.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range fatalErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
