package ir

import (
	"errors"
	"fmt"
	"slices"
)

// FieldType names the logical type of a column.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInt     FieldType = "int"
	TypeLong    FieldType = "long"
	TypeBoolean FieldType = "boolean"
)

// ValidFieldTypes defines the allowed column types.
var ValidFieldTypes = map[FieldType]bool{
	TypeString:  true,
	TypeInt:     true,
	TypeLong:    true,
	TypeBoolean: true,
}

// ErrInvalidSchema is wrapped by every schema construction failure.
var ErrInvalidSchema = errors.New("invalid schema")

// Field is one column of a table schema.
// ID is stable across schema evolution; Name and position are not.
type Field struct {
	ID       int       `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	Type     FieldType `json:"type" yaml:"type"`
	Required bool      `json:"required,omitempty" yaml:"required,omitempty"`
}

// Accepts reports whether v may be stored in this field.
func (f Field) Accepts(v Value) bool {
	if IsNull(v) {
		return !f.Required
	}
	switch v.(type) {
	case String:
		return f.Type == TypeString
	case Int:
		return f.Type == TypeInt || f.Type == TypeLong
	case Bool:
		return f.Type == TypeBoolean
	default:
		return false
	}
}

// Schema is an immutable ordered sequence of fields.
//
// The id→position table is built once at construction; Position never
// derives a slot from the numeric value of an id, because ids need not be
// contiguous or 1-based.
type Schema struct {
	fields    []Field
	positions map[int]int
}

// NewSchema validates fields and builds the id→position table.
// Ids must be positive and unique; names must be non-empty and unique.
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{
		fields:    slices.Clone(fields),
		positions: make(map[int]int, len(fields)),
	}
	names := make(map[string]bool, len(fields))

	for i, f := range s.fields {
		if f.ID <= 0 {
			return nil, fmt.Errorf("%w: field %q has non-positive id %d", ErrInvalidSchema, f.Name, f.ID)
		}
		if f.Name == "" {
			return nil, fmt.Errorf("%w: field id %d has empty name", ErrInvalidSchema, f.ID)
		}
		if !ValidFieldTypes[f.Type] {
			return nil, fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidSchema, f.Name, f.Type)
		}
		if _, dup := s.positions[f.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate field id %d", ErrInvalidSchema, f.ID)
		}
		if names[f.Name] {
			return nil, fmt.Errorf("%w: duplicate field name %q", ErrInvalidSchema, f.Name)
		}
		s.positions[f.ID] = i
		names[f.Name] = true
	}

	return s, nil
}

// MustSchema is like NewSchema but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// Fields returns a copy of the fields in schema order.
func (s *Schema) Fields() []Field {
	return slices.Clone(s.fields)
}

// FieldAt returns the field at position i.
func (s *Schema) FieldAt(i int) Field {
	return s.fields[i]
}

// IDs returns field ids in schema order.
func (s *Schema) IDs() []int {
	ids := make([]int, len(s.fields))
	for i, f := range s.fields {
		ids[i] = f.ID
	}
	return ids
}

// Position returns the row slot holding field id.
func (s *Schema) Position(id int) (int, bool) {
	pos, ok := s.positions[id]
	return pos, ok
}

// FindField returns the field with the given id.
func (s *Schema) FindField(id int) (Field, bool) {
	pos, ok := s.positions[id]
	if !ok {
		return Field{}, false
	}
	return s.fields[pos], true
}

// FindFieldByName returns the field with the given name.
func (s *Schema) FindFieldByName(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Equal reports whether both schemas hold the same fields in the same order.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	return slices.Equal(s.fields, other.fields)
}

// Validate checks arity and per-field type acceptance of positional values.
func (s *Schema) Validate(values []Value) error {
	if len(values) != len(s.fields) {
		return fmt.Errorf("row has %d values, schema has %d fields", len(values), len(s.fields))
	}
	for i, f := range s.fields {
		if !f.Accepts(values[i]) {
			return fmt.Errorf("field %q (id %d): value %s not accepted by type %s",
				f.Name, f.ID, FormatValue(values[i]), f.Type)
		}
	}
	return nil
}

// String renders the schema as "struct<1:k:long,2:v1:string>".
func (s *Schema) String() string {
	out := "struct<"
	for i, f := range s.fields {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%d:%s:%s", f.ID, f.Name, f.Type)
	}
	return out + ">"
}
