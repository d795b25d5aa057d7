package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/loopswap/internal/swaperr"
)

// InvocationError reports a failed invocation. The wrapped error carries the
// swaperr code; use swaperr.Is or swaperr.CodeOf on the InvocationError
// directly.
type InvocationError struct {
	// InvocationID is the journal id of the failed invocation.
	InvocationID string

	// Command is the decoded command name, empty if decoding failed.
	Command string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("invocation %s (%s): %v", e.InvocationID, e.Command, e.Err)
	}
	return fmt.Sprintf("invocation %s: %v", e.InvocationID, e.Err)
}

// Unwrap returns the underlying failure.
func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Code returns the domain code of the failure, or CodeUnknown for
// infrastructure errors.
func (e *InvocationError) Code() swaperr.Code {
	return swaperr.CodeOf(e.Err)
}

// IsRejection reports whether err is a domain rejection (a known swaperr
// code) rather than an infrastructure failure.
// Uses errors.As to handle wrapped errors.
func IsRejection(err error) bool {
	var se *swaperr.Error
	return errors.As(err, &se) && se.Code.Known()
}

// ErrStopped is returned by Submit once the engine has stopped.
var ErrStopped = errors.New("engine stopped")
