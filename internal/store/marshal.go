package store

import (
	"fmt"

	"github.com/roach88/deltasink/internal/ir"
)

// marshalRecord converts a row's values to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so digests are stable across runs.
func marshalRecord(values []ir.Value) ([]byte, error) {
	data, err := ir.MarshalRecord(values)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

// unmarshalRecord parses a stored canonical JSON array back into values.
// Integers are decoded via json.Number to avoid float64 precision loss for
// values > 2^53.
func unmarshalRecord(data string) ([]ir.Value, error) {
	values, err := ir.UnmarshalValues([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return values, nil
}

// marshalFieldIDs encodes equality field ids as a canonical JSON array.
func marshalFieldIDs(ids []int) (string, error) {
	if ids == nil {
		ids = []int{}
	}
	data, err := ir.MarshalCanonical(ids)
	if err != nil {
		return "", fmt.Errorf("marshal equality ids: %w", err)
	}
	return string(data), nil
}

// unmarshalFieldIDs parses equality field ids. An empty array yields nil.
func unmarshalFieldIDs(data string) ([]int, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	values, err := ir.UnmarshalValues([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal equality ids: %w", err)
	}
	ids := make([]int, len(values))
	for i, v := range values {
		n, ok := v.(ir.Int)
		if !ok {
			return nil, fmt.Errorf("unmarshal equality ids: element %d is %s, not an integer", i, ir.FormatValue(v))
		}
		ids[i] = int(n)
	}
	return ids, nil
}
