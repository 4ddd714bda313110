package mgoquery

import (
	"errors"

	"github.com/influx6/mgoquery/db/pool"
)

//==============================================================================

// ValidationError is returned when caller supplied data fails a precondition.
// It is always raised before a connection is leased.
type ValidationError struct {
	Op  string `json:"op"`
	Msg string `json:"message"`
}

// Message returns the internal message for this error.
func (v *ValidationError) Message() string {
	return v.Msg
}

// Error returns the error message for this validation error.
func (v *ValidationError) Error() string {
	if v.Op == "" {
		return v.Msg
	}

	return v.Op + " : " + v.Msg
}

// Invalid returns a new ValidationError for the giving operation.
func Invalid(op, msg string) error {
	return &ValidationError{Op: op, Msg: msg}
}

// IsValidation returns true if err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

//==============================================================================

// ErrPoolTimeout is matched by errors.Is when no connection became available
// within the configured acquire wait.
var ErrPoolTimeout = pool.ErrPoolTimeout

// ErrPoolClosed is returned when a connection is requested from a pool that
// is draining.
var ErrPoolClosed = pool.ErrPoolClosed
