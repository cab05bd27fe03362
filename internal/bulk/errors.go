package bulk

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("invalid payload")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflicting concurrent change")
)

// ValidationError reports the first invalid field of a batch.
type ValidationError struct {
	Index int    // Position of the payload in the batch, -1 for the batch itself
	Field string // JSON name of the field
	Code  string // Machine readable reason, e.g. "required" or "not_found"
}

func (e ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: field '%s' is %s", ErrValidation, e.Field, e.Code)
	}
	return fmt.Sprintf("%s at index %d: field '%s' is %s", ErrValidation, e.Index, e.Field, e.Code)
}

func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(index int, field, code string) error {
	return ValidationError{Index: index, Field: field, Code: code}
}

func notFound(index int, what fmt.Stringer) error {
	return fmt.Errorf("%w: %s at index %d", ErrNotFound, what, index)
}
