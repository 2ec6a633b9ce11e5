package delta

import (
	"fmt"
	"slices"

	"github.com/roach88/deltasink/internal/ir"
)

// DeriveDeleteSchema selects the fields of schema whose id is in
// equalityFieldIDs, ordered by ascending id.
//
// The result depends only on the set of ids: input order and duplicates
// are ignored. Every id must exist in schema, otherwise UNKNOWN_FIELD_ID.
func DeriveDeleteSchema(schema *ir.Schema, equalityFieldIDs []int) (*ir.Schema, error) {
	ids := canonicalIDs(equalityFieldIDs)

	fields := make([]ir.Field, 0, len(ids))
	for _, id := range ids {
		f, ok := schema.FindField(id)
		if !ok {
			return nil, NewUnknownFieldIDError(id, schema)
		}
		fields = append(fields, f)
	}

	deleteSchema, err := ir.NewSchema(fields...)
	if err != nil {
		return nil, fmt.Errorf("derive delete schema: %w", err)
	}
	return deleteSchema, nil
}

// Projector projects full rows onto a delete-key schema.
//
// Source slots are resolved once, at construction, through the schema's
// id→position table. Project never computes a slot from an id's value.
type Projector struct {
	deleteSchema *ir.Schema
	ids          []int
	positions    []int
}

// NewProjector derives the delete-key schema and its slot table.
func NewProjector(schema *ir.Schema, equalityFieldIDs []int) (*Projector, error) {
	deleteSchema, err := DeriveDeleteSchema(schema, equalityFieldIDs)
	if err != nil {
		return nil, err
	}

	ids := deleteSchema.IDs()
	positions := make([]int, len(ids))
	for i, id := range ids {
		pos, ok := schema.Position(id)
		if !ok {
			return nil, NewUnknownFieldIDError(id, schema)
		}
		positions[i] = pos
	}

	return &Projector{
		deleteSchema: deleteSchema,
		ids:          ids,
		positions:    positions,
	}, nil
}

// Schema returns the delete-key schema.
func (p *Projector) Schema() *ir.Schema {
	return p.deleteSchema
}

// EqualityFieldIDs returns the key ids in ascending order.
func (p *Projector) EqualityFieldIDs() []int {
	return slices.Clone(p.ids)
}

// Project extracts the key columns of row, in delete-key schema order.
// The row kind is carried over. row must conform to the source schema.
func (p *Projector) Project(row ir.Row) ir.Row {
	values := make([]ir.Value, len(p.positions))
	for i, pos := range p.positions {
		values[i] = row.Values[pos]
	}
	return ir.Row{Kind: row.Kind, Values: values}
}

// canonicalIDs returns the distinct ids in ascending order.
func canonicalIDs(ids []int) []int {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
