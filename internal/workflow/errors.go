package workflow

import (
	"errors"

	"github.com/noahxzhu/medtracker/internal/records"
)

var (
	// ErrNotFound matches records.ErrNotFound.
	ErrNotFound          = records.ErrNotFound
	ErrSupplyExhausted   = errors.New("no supply available")
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrNoDoses           = errors.New("no doses recorded")
)

// ValidationError reports caller input that must be corrected and
// resubmitted. It is never persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
