package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"bridgeScope/internal/model"
)

const keyDelimiter = "!"

// KeyFunc extracts one component of a composite key from a decoded log.
type KeyFunc func(model.DecodedLog) (string, error)

// SecondaryKey is one ordered component of a filter's composite index key.
type SecondaryKey struct {
	Name  string
	Value KeyFunc
}

// FieldKey returns a secondary key reading the decoded input name of event.
// It fails when the event declares no such input.
func FieldKey(event abi.Event, name string) (SecondaryKey, error) {
	for _, input := range event.Inputs {
		if input.Name == name {
			return SecondaryKey{
				Name: name,
				Value: func(log model.DecodedLog) (string, error) {
					return log.Decoded.Get(name)
				},
			}, nil
		}
	}
	return SecondaryKey{}, fmt.Errorf("%w: event %s has no input %q", ErrInvalidSecondary, event.Name, name)
}

// MustFieldKeys builds FieldKeys for names and panics on an undeclared input.
// It is meant for package-level filter tables built from compiled-in ABIs.
func MustFieldKeys(event abi.Event, names ...string) []SecondaryKey {
	keys := make([]SecondaryKey, 0, len(names))
	for _, name := range names {
		key, err := FieldKey(event, name)
		if err != nil {
			panic(err)
		}
		keys = append(keys, key)
	}
	return keys
}

func validateSecondaryKeys(keys []SecondaryKey) error {
	if len(keys) == 0 {
		return fmt.Errorf("%w: at least one key is required", ErrInvalidSecondary)
	}
	seen := make(map[string]struct{}, len(keys))
	for i, key := range keys {
		if key.Name == "" {
			return fmt.Errorf("%w: key %d has no name", ErrInvalidSecondary, i)
		}
		if key.Value == nil {
			return fmt.Errorf("%w: key %q has no accessor", ErrInvalidSecondary, key.Name)
		}
		if _, ok := seen[key.Name]; ok {
			return fmt.Errorf("%w: key %q declared twice", ErrInvalidSecondary, key.Name)
		}
		seen[key.Name] = struct{}{}
	}
	return nil
}

func joinKeyValues(values []string) (string, error) {
	for _, value := range values {
		if value == "" {
			return "", fmt.Errorf("%w: empty value", ErrInvalidKeyValue)
		}
		if strings.Contains(value, keyDelimiter) {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidKeyValue, value, keyDelimiter)
		}
	}
	return strings.Join(values, keyDelimiter), nil
}

func compositeKey(keys []SecondaryKey, log model.DecodedLog) (string, error) {
	values := make([]string, 0, len(keys))
	for _, key := range keys {
		value, err := key.Value(log)
		if err != nil {
			return "", fmt.Errorf("%w: key %q: %v", ErrInvalidKeyValue, key.Name, err)
		}
		values = append(values, value)
	}
	return joinKeyValues(values)
}
