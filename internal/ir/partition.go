package ir

import (
	"fmt"
	"net/url"
	"strings"
)

// PartitionKey identifies the physical partition a row belongs to.
//
// It is comparable and used directly as a map key. Two keys are equal iff
// their canonical value encodings are equal; Path is derived from the same
// values and is kept for display and storage.
type PartitionKey struct {
	// Path is "name=value/name=value" with values URL-escaped.
	Path string
	// Values is the canonical JSON array of partition values.
	Values string
}

// Unpartitioned is the key shared by every row of an unpartitioned table.
var Unpartitioned = PartitionKey{Values: "[]"}

// NewPartitionKey builds a key from partition field names and their values.
func NewPartitionKey(names []string, values []Value) (PartitionKey, error) {
	if len(names) != len(values) {
		return PartitionKey{}, fmt.Errorf("partition key: %d names for %d values", len(names), len(values))
	}

	canonical, err := MarshalRecord(values)
	if err != nil {
		return PartitionKey{}, fmt.Errorf("partition key: %w", err)
	}

	segments := make([]string, len(names))
	for i, name := range names {
		segments[i] = name + "=" + url.PathEscape(FormatValue(values[i]))
	}

	return PartitionKey{
		Path:   strings.Join(segments, "/"),
		Values: string(canonical),
	}, nil
}

// IsUnpartitioned reports whether k carries no partition values.
func (k PartitionKey) IsUnpartitioned() bool {
	return k.Values == "" || k.Values == "[]"
}

// String returns the path, or "<unpartitioned>".
func (k PartitionKey) String() string {
	if k.IsUnpartitioned() {
		return "<unpartitioned>"
	}
	return k.Path
}
