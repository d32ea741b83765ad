package indexer

import (
	"context"
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"bridgeScope/internal/model"
)

// Decoder turns a raw log into decoded fields. A Decoder may perform RPC
// calls (for example to enrich a log with data from its transaction). Errors
// caused by the log itself must wrap ErrShapeMismatch; anything else is
// retried.
type Decoder interface {
	Decode(ctx context.Context, log types.Log) (model.Fields, error)
}

// ABIDecoder decodes logs of a single ABI event.
type ABIDecoder struct {
	event abi.Event
}

// NewABIDecoder builds a decoder for event.
func NewABIDecoder(event abi.Event) *ABIDecoder {
	return &ABIDecoder{event: event}
}

// Event returns the decoded event definition.
func (d *ABIDecoder) Event() abi.Event {
	return d.event
}

// Decode checks the log shape against the event and unpacks topics and data.
func (d *ABIDecoder) Decode(_ context.Context, log types.Log) (model.Fields, error) {
	if d.event.Anonymous {
		return nil, fmt.Errorf("%w: anonymous event %s is not supported", ErrShapeMismatch, d.event.Name)
	}
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("%w: missing topics", ErrShapeMismatch)
	}
	if log.Topics[0] != d.event.ID {
		return nil, fmt.Errorf("%w: topic0 %s does not match %s", ErrShapeMismatch, log.Topics[0].Hex(), d.event.Sig)
	}

	indexed := indexedArguments(d.event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("%w: expected %d topics, got %d", ErrShapeMismatch, len(indexed)+1, len(log.Topics))
	}

	values := make(map[string]interface{}, len(d.event.Inputs))
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(values, indexed, log.Topics[1:]); err != nil {
			return nil, fmt.Errorf("%w: parse topics: %v", ErrShapeMismatch, err)
		}
	}
	if nonIndexed := d.event.Inputs.NonIndexed(); len(nonIndexed) > 0 {
		if err := nonIndexed.UnpackIntoMap(values, log.Data); err != nil {
			return nil, fmt.Errorf("%w: unpack %s: %v", ErrShapeMismatch, d.event.Name, err)
		}
	}

	fields := make(model.Fields, len(values))
	for name, value := range values {
		formatted, err := formatValue(value)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", ErrShapeMismatch, name, err)
		}
		fields[name] = formatted
	}
	return fields, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func formatValue(value interface{}) (string, error) {
	switch v := value.(type) {
	case *big.Int:
		return v.String(), nil
	case common.Address:
		return v.Hex(), nil
	case common.Hash:
		return v.Hex(), nil
	case []byte:
		return hexutil.Encode(v), nil
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		buf := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(buf), rv)
		return hexutil.Encode(buf), nil
	}
	return "", fmt.Errorf("unsupported value type %T", value)
}
