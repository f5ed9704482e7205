package atomicdb

import (
	"errors"
	"fmt"

	"github.com/kartikbazzad/atomicdb/internal/query"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("database is closed")

	// ErrIndexNotFound is returned by DropIndex for an unknown field set.
	ErrIndexNotFound = errors.New("index not found")

	// ErrNoFields is returned by CreateIndex with an empty field list.
	ErrNoFields = errors.New("index requires at least one field")

	// ErrUnknownType is returned by a $type test naming an unsupported
	// type.
	ErrUnknownType = query.ErrUnknownType

	// ErrUnknownOperator is returned by map queries naming an unsupported
	// operator.
	ErrUnknownOperator = query.ErrUnknownOperator
)

// ValidationError reports the first schema violation found in a document.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func newMissingFieldError(field string) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf("missing required field: %s", field)}
}

func newWrongTypeError(field string, want FieldType) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf("field %s must be a %s", field, want)}
}
