// Package partition computes partition keys for table rows.
//
// Two specs are provided: Unpartitioned, which maps every row to the same
// key, and Identity, which partitions by the raw values of source columns.
// Both satisfy delta.PartitionKeyComputer.
package partition

import (
	"fmt"

	"github.com/roach88/deltasink/internal/ir"
)

// Spec computes a row's partition key.
type Spec interface {
	ComputeKey(row ir.Row) (ir.PartitionKey, error)

	// FieldIDs returns the source field ids, in partition order.
	FieldIDs() []int
}

// unpartitioned routes every row to ir.Unpartitioned.
type unpartitioned struct{}

// Unpartitioned returns the spec of a table without partition columns.
func Unpartitioned() Spec {
	return unpartitioned{}
}

func (unpartitioned) ComputeKey(ir.Row) (ir.PartitionKey, error) {
	return ir.Unpartitioned, nil
}

func (unpartitioned) FieldIDs() []int {
	return nil
}

// Identity partitions rows by the values of source columns.
type Identity struct {
	ids       []int
	names     []string
	positions []int
}

// NewIdentity resolves sourceIDs against schema. Ids keep the supplied
// order; an id may appear at most once. An empty list yields an identity
// spec equivalent to Unpartitioned.
func NewIdentity(schema *ir.Schema, sourceIDs []int) (*Identity, error) {
	p := &Identity{
		ids:       make([]int, 0, len(sourceIDs)),
		names:     make([]string, 0, len(sourceIDs)),
		positions: make([]int, 0, len(sourceIDs)),
	}

	seen := make(map[int]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		if seen[id] {
			return nil, fmt.Errorf("partition source field %d listed twice", id)
		}
		seen[id] = true

		pos, ok := schema.Position(id)
		if !ok {
			return nil, fmt.Errorf("partition source field %d not found in %s", id, schema)
		}
		field := schema.FieldAt(pos)

		p.ids = append(p.ids, id)
		p.names = append(p.names, field.Name)
		p.positions = append(p.positions, pos)
	}
	return p, nil
}

// NewIdentityByName resolves partition columns by name.
func NewIdentityByName(schema *ir.Schema, names []string) (*Identity, error) {
	ids := make([]int, len(names))
	for i, name := range names {
		f, ok := schema.FindFieldByName(name)
		if !ok {
			return nil, fmt.Errorf("partition column %q not found in %s", name, schema)
		}
		ids[i] = f.ID
	}
	return NewIdentity(schema, ids)
}

// ComputeKey returns the key built from row's partition columns.
func (p *Identity) ComputeKey(row ir.Row) (ir.PartitionKey, error) {
	if len(p.positions) == 0 {
		return ir.Unpartitioned, nil
	}

	values := make([]ir.Value, len(p.positions))
	for i, pos := range p.positions {
		if pos >= row.Len() {
			return ir.PartitionKey{}, fmt.Errorf("row %s has no value for partition column %s", row, p.names[i])
		}
		values[i] = row.Values[pos]
	}
	return ir.NewPartitionKey(p.names, values)
}

// FieldIDs returns the source field ids in partition order.
func (p *Identity) FieldIDs() []int {
	return append([]int(nil), p.ids...)
}

// Names returns the partition column names in partition order.
func (p *Identity) Names() []string {
	return append([]string(nil), p.names...)
}
