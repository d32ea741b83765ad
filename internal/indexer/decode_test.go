package indexer

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"bridgeScope/internal/model"
)

func TestABIDecoderDecode(t *testing.T) {
	decoder := NewABIDecoder(testEvent(t))

	fields, err := decoder.Decode(context.Background(), depositLog(t, 105, 3, 7))
	require.NoError(t, err)
	require.Equal(t, model.Fields{
		"sender":  testSender.Hex(),
		"nonce":   "7",
		"amount":  "70",
		"payload": "0xab07",
	}, fields)
}

func TestABIDecoderRejectsMismatch(t *testing.T) {
	decoder := NewABIDecoder(testEvent(t))

	wrongTopic := depositLog(t, 105, 0, 1)
	wrongTopic.Topics[0] = common.HexToHash("0x01")
	_, err := decoder.Decode(context.Background(), wrongTopic)
	require.ErrorIs(t, err, ErrShapeMismatch)

	missingTopic := depositLog(t, 105, 0, 1)
	missingTopic.Topics = missingTopic.Topics[:1]
	_, err = decoder.Decode(context.Background(), missingTopic)
	require.ErrorIs(t, err, ErrShapeMismatch)

	shortData := depositLog(t, 105, 0, 1)
	shortData.Data = shortData.Data[:16]
	_, err = decoder.Decode(context.Background(), shortData)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestFieldKey(t *testing.T) {
	event := testEvent(t)

	key, err := FieldKey(event, "nonce")
	require.NoError(t, err)
	value, err := key.Value(model.DecodedLog{Decoded: model.Fields{"nonce": "12"}})
	require.NoError(t, err)
	require.Equal(t, "12", value)

	_, err = FieldKey(event, "missing")
	require.ErrorIs(t, err, ErrInvalidSecondary)

	require.Panics(t, func() { MustFieldKeys(event, "nonce", "missing") })
}
