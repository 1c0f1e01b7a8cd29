package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound means the referenced painting does not exist.
	ErrNotFound = errors.New("painting not found")
	// ErrUnauthorized means the caller may not change paintings.
	ErrUnauthorized = errors.New("not authorized")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrStorage wraps failures of the underlying database.
	ErrStorage = errors.New("storage failure")
	// ErrPartialBatch is matched by every *BatchError.
	ErrPartialBatch = errors.New("reorder batch failed")
)

// ValidationError reports invalid input. Field names the offending field
// when there is one.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "missing required field: " + e.Field
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// BatchError reports the IDs of a reorder batch that could not be applied.
// No update of the batch was persisted.
type BatchError struct {
	Failed []string
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("painting orders not updated, unknown ids: %s", strings.Join(e.Failed, ", "))
}

func (e *BatchError) Is(target error) bool {
	return target == ErrPartialBatch
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
