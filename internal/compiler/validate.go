package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/deltasink/internal/delta"
	"github.com/roach88/deltasink/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrTableNoFields         = "E101" // at least one field required
	ErrInvalidFieldID        = "E102" // field id must be positive
	ErrDuplicateFieldID      = "E103" // two fields share an id
	ErrDuplicateName         = "E104" // two fields share a name
	ErrInvalidFieldType      = "E105" // unknown type string
	ErrFloatTypeForbidden    = "E106" // float types not allowed
	ErrInvalidDeletePolicy   = "E107" // delete_policy is not key or row
	ErrUnknownEqualityField  = "E108" // equality field not in fields
	ErrEmptyEqualityFields   = "E109" // key policy without equality fields
	ErrUnknownPartitionField = "E110" // partition_by column not in fields
	ErrDuplicatePartition    = "E111" // partition_by lists a column twice
	ErrEmptyFieldName        = "E112" // field name is blank
)

// ValidationError represents a table validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a table spec.
// Returns all errors found (does not fail-fast).
func Validate(spec *TableSpec) []ValidationError {
	var errs []ValidationError

	// E101: at least one field
	if len(spec.Fields) == 0 {
		errs = append(errs, ValidationError{
			Field:   "fields",
			Message: "at least one field is required",
			Code:    ErrTableNoFields,
		})
	}

	ids := make(map[int]bool)
	names := make(map[string]bool)
	for i, f := range spec.Fields {
		path := fmt.Sprintf("fields[%d]", i)

		if f.ID <= 0 {
			errs = append(errs, ValidationError{
				Field:   path + ".id",
				Message: fmt.Sprintf("field id must be positive, got %d", f.ID),
				Code:    ErrInvalidFieldID,
			})
		} else if ids[f.ID] {
			errs = append(errs, ValidationError{
				Field:   path + ".id",
				Message: fmt.Sprintf("duplicate field id: %d", f.ID),
				Code:    ErrDuplicateFieldID,
			})
		}
		ids[f.ID] = true

		if strings.TrimSpace(f.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   path + ".name",
				Message: "field name is required and must be non-empty",
				Code:    ErrEmptyFieldName,
			})
		} else if names[f.Name] {
			errs = append(errs, ValidationError{
				Field:   path + ".name",
				Message: fmt.Sprintf("duplicate field name: %q", f.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[f.Name] = true

		errs = append(errs, validateFieldType(f.Type, path+".type", f.Name)...)
	}

	policy, err := delta.ParseDeletePolicy(spec.DeletePolicy)
	if err != nil {
		errs = append(errs, ValidationError{
			Field:   "delete_policy",
			Message: fmt.Sprintf("invalid delete policy %q, must be \"key\" or \"row\"", spec.DeletePolicy),
			Code:    ErrInvalidDeletePolicy,
		})
	}

	for i, ref := range spec.EqualityFields {
		if _, ok := ref.resolve(spec.Fields); !ok {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("equality_fields[%d]", i),
				Message: fmt.Sprintf("equality field %s not found in fields", ref),
				Code:    ErrUnknownEqualityField,
			})
		}
	}

	if err == nil && policy == delta.KeyEquality && len(spec.EqualityFields) == 0 {
		errs = append(errs, ValidationError{
			Field:   "equality_fields",
			Message: "key delete policy requires at least one equality field",
			Code:    ErrEmptyEqualityFields,
		})
	}

	seen := make(map[int]bool)
	for i, ref := range spec.PartitionBy {
		f, ok := ref.resolve(spec.Fields)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("partition_by[%d]", i),
				Message: fmt.Sprintf("partition column %s not found in fields", ref),
				Code:    ErrUnknownPartitionField,
			})
			continue
		}
		if seen[f.ID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("partition_by[%d]", i),
				Message: fmt.Sprintf("partition column %s listed twice", ref),
				Code:    ErrDuplicatePartition,
			})
		}
		seen[f.ID] = true
	}

	return errs
}

// validateFieldType validates a type string, returning errors for invalid types and floats.
func validateFieldType(fieldType ir.FieldType, fieldPath, fieldName string) []ValidationError {
	// E106: float forbidden
	if isFloatType(fieldType) {
		return []ValidationError{{
			Field:   fieldPath,
			Message: fmt.Sprintf("float type forbidden for field %q, use long instead", fieldName),
			Code:    ErrFloatTypeForbidden,
		}}
	}

	// E105: check for valid type
	if !ir.ValidFieldTypes[fieldType] {
		return []ValidationError{{
			Field:   fieldPath,
			Message: fmt.Sprintf("invalid type %q for field %q", fieldType, fieldName),
			Code:    ErrInvalidFieldType,
		}}
	}
	return nil
}

func isFloatType(t ir.FieldType) bool {
	switch strings.ToLower(string(t)) {
	case "float", "double", "decimal", "number":
		return true
	}
	return false
}
