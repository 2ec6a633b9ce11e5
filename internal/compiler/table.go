package compiler

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/deltasink/internal/ir"
)

// TableSpec is a table definition as written, before validation.
type TableSpec struct {
	Name           string     `json:"name"`
	Fields         []ir.Field `json:"fields"`
	EqualityFields []FieldRef `json:"equality_fields,omitempty"`
	DeletePolicy   string     `json:"delete_policy"`
	PartitionBy    []FieldRef `json:"partition_by,omitempty"`
}

// FieldRef names a column either by id or by name. Exactly one is set.
type FieldRef struct {
	ID   int    `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

func (r FieldRef) String() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("#%d", r.ID)
}

// resolve finds the referenced field in fields.
func (r FieldRef) resolve(fields []ir.Field) (ir.Field, bool) {
	for _, f := range fields {
		if (r.Name != "" && f.Name == r.Name) || (r.Name == "" && f.ID == r.ID) {
			return f, true
		}
	}
	return ir.Field{}, false
}

// CompileTables compiles every table under the top-level "table" struct.
// Tables are returned sorted by name.
func CompileTables(v cue.Value) ([]*TableSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tablesVal := v.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, nil
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []*TableSpec
	for iter.Next() {
		spec, err := CompileTable(iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs, nil
}

// CompileTable parses a CUE value into a TableSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the table struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`table: orders: { ... }`)
//	spec, err := CompileTable(v.LookupPath(cue.ParsePath("table.orders")))
func CompileTable(v cue.Value) (*TableSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &TableSpec{DeletePolicy: "key"}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}
	fields, err := parseFields(fieldsVal)
	if err != nil {
		return nil, err
	}
	spec.Fields = fields

	if refsVal := v.LookupPath(cue.ParsePath("equality_fields")); refsVal.Exists() {
		spec.EqualityFields, err = parseFieldRefs(refsVal, "equality_fields")
		if err != nil {
			return nil, err
		}
	}

	if policyVal := v.LookupPath(cue.ParsePath("delete_policy")); policyVal.Exists() {
		policy, err := policyVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.DeletePolicy = policy
	}

	if refsVal := v.LookupPath(cue.ParsePath("partition_by")); refsVal.Exists() {
		spec.PartitionBy, err = parseFieldRefs(refsVal, "partition_by")
		if err != nil {
			return nil, err
		}
	}

	return spec, nil
}

// parseFields reads the ordered column list.
func parseFields(v cue.Value) ([]ir.Field, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []ir.Field
	for i := 0; iter.Next(); i++ {
		elem := iter.Value()
		path := fmt.Sprintf("fields[%d]", i)

		idVal := elem.LookupPath(cue.ParsePath("id"))
		if !idVal.Exists() {
			return nil, &CompileError{Field: path + ".id", Message: "field id is required", Pos: elem.Pos()}
		}
		id, err := idVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}

		nameVal := elem.LookupPath(cue.ParsePath("name"))
		if !nameVal.Exists() {
			return nil, &CompileError{Field: path + ".name", Message: "field name is required", Pos: elem.Pos()}
		}
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		typeVal := elem.LookupPath(cue.ParsePath("type"))
		if !typeVal.Exists() {
			return nil, &CompileError{Field: path + ".type", Message: "field type is required", Pos: elem.Pos()}
		}
		typ, err := typeVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		field := ir.Field{ID: int(id), Name: name, Type: ir.FieldType(typ)}

		if reqVal := elem.LookupPath(cue.ParsePath("required")); reqVal.Exists() {
			field.Required, err = reqVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
		}

		fields = append(fields, field)
	}
	return fields, nil
}

// parseFieldRefs reads a list whose elements are field ids or field names.
func parseFieldRefs(v cue.Value, field string) ([]FieldRef, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var refs []FieldRef
	for i := 0; iter.Next(); i++ {
		elem := iter.Value()
		switch elem.IncompleteKind() {
		case cue.IntKind:
			id, err := elem.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			refs = append(refs, FieldRef{ID: int(id)})
		case cue.StringKind:
			name, err := elem.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			refs = append(refs, FieldRef{Name: name})
		default:
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: "must be a field id (int) or field name (string)",
				Pos:     elem.Pos(),
			}
		}
	}
	return refs, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
