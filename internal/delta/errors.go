package delta

import (
	"errors"
	"fmt"

	"github.com/roach88/deltasink/internal/ir"
)

// Error is a classification or construction failure of the delta writer.
//
// Every Error is fatal for the event stream that produced it: the caller
// must stop feeding the TaskWriter and abort it.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// FieldID is the offending equality field id (UNKNOWN_FIELD_ID).
	FieldID int

	// Kind is the offending change kind (UNSUPPORTED_CHANGE_KIND).
	Kind ir.ChangeKind

	// Partition is the affected partition path, when known.
	Partition string
}

// ErrorCode categorizes delta writer errors.
type ErrorCode string

const (
	// ErrCodeUnsupportedChangeKind indicates an event tag outside the four known kinds.
	ErrCodeUnsupportedChangeKind ErrorCode = "UNSUPPORTED_CHANGE_KIND"

	// ErrCodeUnknownFieldID indicates an equality field id missing from the schema.
	ErrCodeUnknownFieldID ErrorCode = "UNKNOWN_FIELD_ID"

	// ErrCodeEmptyEqualityFields indicates KeyEquality was configured without key ids.
	ErrCodeEmptyEqualityFields ErrorCode = "EMPTY_EQUALITY_FIELDS"

	// ErrCodeWriterClosed indicates a call on a closed writer or task.
	ErrCodeWriterClosed ErrorCode = "WRITER_CLOSED"

	// ErrCodeRowArity indicates a row whose value count differs from the schema.
	ErrCodeRowArity ErrorCode = "ROW_ARITY"

	// ErrCodeInvalidConfig indicates a missing collaborator or schema.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Partition != "" {
		return fmt.Sprintf("%s: %s (partition=%s)", e.Code, e.Message, e.Partition)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnsupportedChangeKind returns true if err is an unsupported change kind error.
// Uses errors.As to handle wrapped errors.
func IsUnsupportedChangeKind(err error) bool {
	return hasCode(err, ErrCodeUnsupportedChangeKind)
}

// IsUnknownFieldID returns true if err reports an equality id missing from the schema.
func IsUnknownFieldID(err error) bool {
	return hasCode(err, ErrCodeUnknownFieldID)
}

// IsWriterClosed returns true if err reports use after close.
func IsWriterClosed(err error) bool {
	return hasCode(err, ErrCodeWriterClosed)
}

// IsRowArity returns true if err reports a row/schema arity mismatch.
func IsRowArity(err error) bool {
	return hasCode(err, ErrCodeRowArity)
}

func hasCode(err error, code ErrorCode) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// NewUnsupportedChangeKindError creates an Error for an unknown event tag.
func NewUnsupportedChangeKindError(kind ir.ChangeKind) *Error {
	return &Error{
		Code:    ErrCodeUnsupportedChangeKind,
		Message: fmt.Sprintf("unknown row kind: %s", kind),
		Kind:    kind,
	}
}

// NewUnknownFieldIDError creates an Error for an equality id absent from the schema.
func NewUnknownFieldIDError(id int, schema *ir.Schema) *Error {
	return &Error{
		Code:    ErrCodeUnknownFieldID,
		Message: fmt.Sprintf("equality field id %d not found in %s", id, schema),
		FieldID: id,
	}
}

// NewWriterClosedError creates an Error for use after close.
func NewWriterClosedError(partition ir.PartitionKey) *Error {
	return &Error{
		Code:      ErrCodeWriterClosed,
		Message:   "writer is already closed",
		Partition: partition.Path,
	}
}

func newRowArityError(got, want int) *Error {
	return &Error{
		Code:    ErrCodeRowArity,
		Message: fmt.Sprintf("row has %d values, schema has %d fields", got, want),
	}
}

func newConfigError(format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidConfig,
		Message: fmt.Sprintf(format, args...),
	}
}
