package provider

import (
	"context"
	"fmt"

	"bridgeScope/internal/kvstore"
)

// Codec serializes records for the keyed store.
type Codec[R any] interface {
	Encode(record R) ([]byte, error)
	Decode(data []byte) (R, error)
}

// CodecFuncs adapts a pair of functions to Codec.
type CodecFuncs[R any] struct {
	EncodeFunc func(R) ([]byte, error)
	DecodeFunc func([]byte) (R, error)
}

func (c CodecFuncs[R]) Encode(record R) ([]byte, error) { return c.EncodeFunc(record) }
func (c CodecFuncs[R]) Decode(data []byte) (R, error)   { return c.DecodeFunc(data) }

// LevelStore keeps records in a namespace of the keyed store.
type LevelStore[R any] struct {
	ns    *kvstore.Namespace
	codec Codec[R]
}

// NewLevelStore returns a store writing into ns.
func NewLevelStore[R any](ns *kvstore.Namespace, codec Codec[R]) *LevelStore[R] {
	return &LevelStore[R]{ns: ns, codec: codec}
}

// Put writes record under id.
func (s *LevelStore[R]) Put(_ context.Context, id string, record R) error {
	value, err := s.codec.Encode(record)
	if err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}
	return s.ns.Put(id, value)
}

// Get reads the record stored under id. A missing id wraps kvstore.ErrNotFound.
func (s *LevelStore[R]) Get(id string) (R, error) {
	var zero R
	raw, err := s.ns.Get(id)
	if err != nil {
		return zero, err
	}
	record, err := s.codec.Decode(raw)
	if err != nil {
		return zero, fmt.Errorf("decode %s: %w", id, err)
	}
	return record, nil
}
