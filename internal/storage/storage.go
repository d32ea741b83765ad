package storage

import (
	"bridgeScope/internal/model"
	"bridgeScope/internal/provider"
)

// Sink is an external destination for message records that owns a resource
// to release on shutdown. Put must be idempotent per id for stores that
// support lookups.
type Sink interface {
	provider.Store[model.Message]
	Close() error
}
