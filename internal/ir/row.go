package ir

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ChangeKind tags a row with its change-data-capture semantics.
type ChangeKind int8

const (
	// Insert adds a new row.
	Insert ChangeKind = iota
	// UpdateBefore retracts the previous image of an updated row.
	UpdateBefore
	// UpdateAfter adds the new image of an updated row.
	UpdateAfter
	// Delete removes a row.
	Delete
)

// ErrUnknownChangeKind is returned when a wire name does not name a kind.
var ErrUnknownChangeKind = errors.New("unknown change kind")

// ShortString returns the compact wire name: +I, -U, +U, -D.
func (k ChangeKind) ShortString() string {
	switch k {
	case Insert:
		return "+I"
	case UpdateBefore:
		return "-U"
	case UpdateAfter:
		return "+U"
	case Delete:
		return "-D"
	default:
		return fmt.Sprintf("?%d", int8(k))
	}
}

// String returns the long name: INSERT, UPDATE_BEFORE, UPDATE_AFTER, DELETE.
func (k ChangeKind) String() string {
	switch k {
	case Insert:
		return "INSERT"
	case UpdateBefore:
		return "UPDATE_BEFORE"
	case UpdateAfter:
		return "UPDATE_AFTER"
	case Delete:
		return "DELETE"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int8(k))
	}
}

// ParseChangeKind accepts either the short or the long name, case-insensitive
// for the long form.
func ParseChangeKind(s string) (ChangeKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "+I", "INSERT":
		return Insert, nil
	case "-U", "UPDATE_BEFORE":
		return UpdateBefore, nil
	case "+U", "UPDATE_AFTER":
		return UpdateAfter, nil
	case "-D", "DELETE":
		return Delete, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownChangeKind, s)
	}
}

// Row is a positional tuple of values tagged with a ChangeKind.
// Values are aligned with the schema the row conforms to.
type Row struct {
	Kind   ChangeKind
	Values []Value
}

// NewRow creates a row of the given kind.
func NewRow(kind ChangeKind, values ...Value) Row {
	return Row{Kind: kind, Values: values}
}

// Len returns the number of values.
func (r Row) Len() int {
	return len(r.Values)
}

// Get returns the value at position i.
func (r Row) Get(i int) Value {
	return r.Values[i]
}

// Equal compares kind and values.
func (r Row) Equal(other Row) bool {
	return r.Kind == other.Kind && slices.EqualFunc(r.Values, other.Values, EqualValues)
}

// String renders the row as "+I(5,a,b)".
func (r Row) String() string {
	parts := make([]string, len(r.Values))
	for i, v := range r.Values {
		parts[i] = FormatValue(v)
	}
	return r.Kind.ShortString() + "(" + strings.Join(parts, ",") + ")"
}
