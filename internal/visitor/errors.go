package visitor

import "errors"

// Error kinds surfaced by the service. Callers match with errors.Is; the
// HTTP layer maps each to a status code.
var (
	ErrNotFound             = errors.New("visitor not found")
	ErrInvalidID            = errors.New("invalid visitor id format")
	ErrDuplicateActiveVisit = errors.New("visitor already checked in")
	ErrAlreadyCheckedOut    = errors.New("visitor already checked out")
)

// ValidationError reports a required field missing on creation.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return "missing required field: " + e.Field
}
