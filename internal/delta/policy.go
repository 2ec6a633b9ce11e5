package delta

import (
	"fmt"
	"strings"

	"github.com/roach88/deltasink/internal/ir"
)

// DeletePolicy selects what a tombstone carries.
type DeletePolicy int

const (
	// KeyEquality deletes by the equality key: the delete record holds only
	// the key columns, ascending by field id.
	KeyEquality DeletePolicy = iota
	// FullRowEquality deletes by the whole row: the delete record is the
	// input row unmodified.
	FullRowEquality
)

// String returns "key" or "row".
func (p DeletePolicy) String() string {
	switch p {
	case KeyEquality:
		return "key"
	case FullRowEquality:
		return "row"
	default:
		return fmt.Sprintf("DeletePolicy(%d)", int(p))
	}
}

// ParseDeletePolicy accepts "key", "key_equality", "row", "full_row", or
// "full_row_equality".
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "key", "key_equality":
		return KeyEquality, nil
	case "row", "full_row", "full_row_equality":
		return FullRowEquality, nil
	default:
		return 0, fmt.Errorf("unknown delete policy %q: must be key or row", s)
	}
}

// deleteStrategy is the policy resolved against a schema: the projection a
// tombstone goes through and the metadata its delete file carries.
type deleteStrategy struct {
	policy       DeletePolicy
	deleteSchema *ir.Schema
	equalityIDs  []int
	project      func(ir.Row) ir.Row
}

// newDeleteStrategy resolves policy for schema. Equality ids are validated
// for every policy, so an unknown id fails at construction either way.
func newDeleteStrategy(policy DeletePolicy, schema *ir.Schema, equalityFieldIDs []int) (*deleteStrategy, error) {
	projector, err := NewProjector(schema, equalityFieldIDs)
	if err != nil {
		return nil, err
	}

	switch policy {
	case KeyEquality:
		if projector.Schema().Len() == 0 {
			return nil, &Error{
				Code:    ErrCodeEmptyEqualityFields,
				Message: "key equality deletes require at least one equality field id",
			}
		}
		return &deleteStrategy{
			policy:       policy,
			deleteSchema: projector.Schema(),
			equalityIDs:  projector.EqualityFieldIDs(),
			project:      projector.Project,
		}, nil

	case FullRowEquality:
		return &deleteStrategy{
			policy:       policy,
			deleteSchema: schema,
			equalityIDs:  canonicalIDs(schema.IDs()),
			project:      func(row ir.Row) ir.Row { return row },
		}, nil

	default:
		return nil, newConfigError("unknown delete policy %s", policy)
	}
}
