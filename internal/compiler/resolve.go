package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/deltasink/internal/delta"
	"github.com/roach88/deltasink/internal/ir"
	"github.com/roach88/deltasink/internal/partition"
)

// Table is a validated table definition, ready to configure a TaskWriter.
type Table struct {
	Name             string
	Schema           *ir.Schema
	EqualityFieldIDs []int
	Policy           delta.DeletePolicy
	Partitioner      partition.Spec
}

// Resolve validates spec and builds its Table. Validation failures are
// returned joined, one error per problem.
func Resolve(spec *TableSpec) (*Table, error) {
	if verrs := Validate(spec); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, fmt.Errorf("table %s: %w", spec.Name, errors.Join(errs...))
	}

	schema, err := ir.NewSchema(spec.Fields...)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", spec.Name, err)
	}

	policy, err := delta.ParseDeletePolicy(spec.DeletePolicy)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", spec.Name, err)
	}

	equalityIDs := resolveIDs(spec.EqualityFields, spec.Fields)

	var partitioner partition.Spec = partition.Unpartitioned()
	if len(spec.PartitionBy) > 0 {
		identity, err := partition.NewIdentity(schema, resolveIDs(spec.PartitionBy, spec.Fields))
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", spec.Name, err)
		}
		partitioner = identity
	}

	return &Table{
		Name:             spec.Name,
		Schema:           schema,
		EqualityFieldIDs: equalityIDs,
		Policy:           policy,
		Partitioner:      partitioner,
	}, nil
}

// TaskConfig returns the TaskWriter configuration for one task over t.
func (t *Table) TaskConfig(taskID string, backends delta.BackendFactory) delta.Config {
	return delta.Config{
		TaskID:           taskID,
		Schema:           t.Schema,
		EqualityFieldIDs: t.EqualityFieldIDs,
		Policy:           t.Policy,
		Partitioner:      t.Partitioner,
		Backends:         backends,
	}
}

// DeleteSchema returns the schema of the table's delete records.
func (t *Table) DeleteSchema() (*ir.Schema, error) {
	if t.Policy == delta.FullRowEquality {
		return t.Schema, nil
	}
	return delta.DeriveDeleteSchema(t.Schema, t.EqualityFieldIDs)
}

// resolveIDs maps refs to field ids. Refs must already be validated.
func resolveIDs(refs []FieldRef, fields []ir.Field) []int {
	ids := make([]int, 0, len(refs))
	for _, ref := range refs {
		if f, ok := ref.resolve(fields); ok {
			ids = append(ids, f.ID)
		}
	}
	return ids
}
