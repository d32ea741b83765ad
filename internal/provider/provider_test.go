package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"bridgeScope/internal/kvstore"
	"bridgeScope/internal/model"
)

type transfer struct {
	Kind  string `json:"kind"`
	Nonce string `json:"nonce"`
}

type jsonCodec[R any] struct{}

func (jsonCodec[R]) Encode(record R) ([]byte, error) { return json.Marshal(record) }

func (jsonCodec[R]) Decode(data []byte) (R, error) {
	var record R
	err := json.Unmarshal(data, &record)
	return record, err
}

type transferFormatter struct {
	formatErr error
}

func (f transferFormatter) Classify(log model.DecodedLog) (string, error) {
	switch log.Log.Topic0() {
	case "0x01":
		return "in", nil
	case "0x02":
		return "out", nil
	}
	return "", fmt.Errorf("%w: topic %s", ErrUnrecognizedState, log.Log.Topic0())
}

func (f transferFormatter) Format(_ context.Context, state string, log model.DecodedLog) (transfer, error) {
	if f.formatErr != nil {
		return transfer{}, f.formatErr
	}
	nonce, err := log.Decoded.Get("nonce")
	if err != nil {
		return transfer{}, err
	}
	return transfer{Kind: state, Nonce: nonce}, nil
}

func (f transferFormatter) Identity(state string, record transfer) (string, error) {
	return state + "!" + record.Nonce, nil
}

type memoryStore struct {
	records map[string]transfer
	err     error
}

func (m *memoryStore) Put(_ context.Context, id string, record transfer) error {
	if m.err != nil {
		return m.err
	}
	if m.records == nil {
		m.records = make(map[string]transfer)
	}
	m.records[id] = record
	return nil
}

func transferLog(topic, nonce string) model.DecodedLog {
	return model.DecodedLog{
		Log:     model.LogRecord{Topics: []string{topic}, TxHash: "0xabc"},
		Decoded: model.Fields{"nonce": nonce},
	}
}

func TestProcessWritesEveryStore(t *testing.T) {
	kv, err := kvstore.OpenMemory()
	require.NoError(t, err)
	defer kv.Close()

	level := NewLevelStore[transfer](kv.Sublevel("transfers"), jsonCodec[transfer]{})
	memory := &memoryStore{}
	p := New[string, transfer]("transfers", transferFormatter{}, nil, level, memory)

	id, err := p.Process(context.Background(), transferLog("0x01", "5"))
	require.NoError(t, err)
	require.Equal(t, "in!5", id)

	got, err := level.Get("in!5")
	require.NoError(t, err)
	require.Equal(t, transfer{Kind: "in", Nonce: "5"}, got)
	require.Equal(t, transfer{Kind: "in", Nonce: "5"}, memory.records["in!5"])
}

func TestProcessUnrecognizedStateWritesNothing(t *testing.T) {
	memory := &memoryStore{}
	p := New[string, transfer]("transfers", transferFormatter{}, nil, memory)

	_, err := p.Process(context.Background(), transferLog("0x03", "5"))
	require.ErrorIs(t, err, ErrUnrecognizedState)
	require.Empty(t, memory.records)
}

func TestHandleStopsAtFirstFailure(t *testing.T) {
	memory := &memoryStore{}
	p := New[string, transfer]("transfers", transferFormatter{}, nil, memory)

	logs := []model.DecodedLog{
		transferLog("0x01", "1"),
		transferLog("0x09", "2"),
		transferLog("0x02", "3"),
	}
	err := p.Handle(context.Background(), logs)
	require.ErrorIs(t, err, ErrUnrecognizedState)
	require.Len(t, memory.records, 1)

	require.NoError(t, p.Handle(context.Background(), []model.DecodedLog{transferLog("0x01", "1"), transferLog("0x01", "1")}))
	require.Len(t, memory.records, 1)
}

func TestProcessPropagatesFormatAndStoreErrors(t *testing.T) {
	formatErr := errors.New("rpc down")
	p := New[string, transfer]("transfers", transferFormatter{formatErr: formatErr}, nil, &memoryStore{})
	_, err := p.Process(context.Background(), transferLog("0x01", "1"))
	require.ErrorIs(t, err, formatErr)

	storeErr := errors.New("disk full")
	p = New[string, transfer]("transfers", transferFormatter{}, nil, &memoryStore{err: storeErr})
	_, err = p.Process(context.Background(), transferLog("0x01", "1"))
	require.ErrorIs(t, err, storeErr)
}

func TestLevelStoreMissing(t *testing.T) {
	kv, err := kvstore.OpenMemory()
	require.NoError(t, err)
	defer kv.Close()

	store := NewLevelStore[transfer](kv.Sublevel("transfers"), CodecFuncs[transfer]{
		EncodeFunc: jsonCodec[transfer]{}.Encode,
		DecodeFunc: jsonCodec[transfer]{}.Decode,
	})
	_, err = store.Get("in!1")
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}
