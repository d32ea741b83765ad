package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bridgeScope/internal/model"
	"bridgeScope/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS sent_messages (
	id TEXT PRIMARY KEY,
	source_chain_id BIGINT NOT NULL,
	destination_chain_id BIGINT NOT NULL,
	nonce BIGINT NOT NULL,
	message TEXT NOT NULL,
	sent_tx_hash TEXT NOT NULL,
	sent_timestamp_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS relayed_messages (
	id TEXT PRIMARY KEY,
	destination_chain_id BIGINT NOT NULL,
	nonce BIGINT NOT NULL,
	message TEXT NOT NULL,
	relay_tx_hash TEXT NOT NULL,
	relay_timestamp_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for message records.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Sink = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema creates the message tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Put upserts a message record under its identity.
func (s *Store) Put(ctx context.Context, id string, msg model.Message) error {
	switch m := msg.(type) {
	case model.SentMessage:
		return s.upsertSent(ctx, id, m)
	case model.RelayedMessage:
		return s.upsertRelayed(ctx, id, m)
	}
	return fmt.Errorf("unsupported message type %T", msg)
}

func (s *Store) upsertSent(ctx context.Context, id string, m model.SentMessage) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sent_messages (
			id, source_chain_id, destination_chain_id, nonce, message, sent_tx_hash, sent_timestamp_ms, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (id)
		DO UPDATE SET
			destination_chain_id = EXCLUDED.destination_chain_id,
			message = EXCLUDED.message,
			sent_tx_hash = EXCLUDED.sent_tx_hash,
			sent_timestamp_ms = EXCLUDED.sent_timestamp_ms,
			updated_at = now()
	`,
		id,
		int64(m.SourceChainID),
		int64(m.DestinationChainID),
		int64(m.Nonce),
		m.Message,
		m.SentTxHash,
		int64(m.SentTimestampMs),
	)
	if err != nil {
		return fmt.Errorf("upsert sent message %s: %w", id, err)
	}
	return nil
}

func (s *Store) upsertRelayed(ctx context.Context, id string, m model.RelayedMessage) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO relayed_messages (
			id, destination_chain_id, nonce, message, relay_tx_hash, relay_timestamp_ms, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (id)
		DO UPDATE SET
			message = EXCLUDED.message,
			relay_tx_hash = EXCLUDED.relay_tx_hash,
			relay_timestamp_ms = EXCLUDED.relay_timestamp_ms,
			updated_at = now()
	`,
		id,
		int64(m.DestinationChainID),
		int64(m.Nonce),
		m.Message,
		m.RelayTxHash,
		int64(m.RelayTimestampMs),
	)
	if err != nil {
		return fmt.Errorf("upsert relayed message %s: %w", id, err)
	}
	return nil
}

// Get loads the sent or relayed record stored under id.
func (s *Store) Get(ctx context.Context, state model.MessageState, id string) (model.Message, error) {
	switch state {
	case model.MessageSent:
		var m model.SentMessage
		var src, dst, nonce, ts int64
		row := s.pool.QueryRow(ctx, `
			SELECT source_chain_id, destination_chain_id, nonce, message, sent_tx_hash, sent_timestamp_ms
			FROM sent_messages WHERE id=$1`, id)
		if err := row.Scan(&src, &dst, &nonce, &m.Message, &m.SentTxHash, &ts); err != nil {
			return nil, notFound(id, err)
		}
		m.SourceChainID, m.DestinationChainID, m.Nonce, m.SentTimestampMs = uint64(src), uint64(dst), uint64(nonce), uint64(ts)
		return m, nil
	case model.MessageRelayed:
		var m model.RelayedMessage
		var dst, nonce, ts int64
		row := s.pool.QueryRow(ctx, `
			SELECT destination_chain_id, nonce, message, relay_tx_hash, relay_timestamp_ms
			FROM relayed_messages WHERE id=$1`, id)
		if err := row.Scan(&dst, &nonce, &m.Message, &m.RelayTxHash, &ts); err != nil {
			return nil, notFound(id, err)
		}
		m.DestinationChainID, m.Nonce, m.RelayTimestampMs = uint64(dst), uint64(nonce), uint64(ts)
		return m, nil
	}
	return nil, fmt.Errorf("unknown message state %q", state)
}

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("message not found")

func notFound(id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", id, err)
}
