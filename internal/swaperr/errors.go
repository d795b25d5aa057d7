// Package swaperr defines the error taxonomy returned by every loopswap
// operation.
//
// All failures are synchronous and terminal. A handler returns an *Error;
// callers inspect it with CodeOf or Is, both of which see through
// fmt.Errorf("...: %w") wrapping.
package swaperr

import (
	"errors"
	"fmt"
)

// Code identifies an error category.
type Code string

const (
	// CodeUnknown marks an error that did not originate from the taxonomy
	// (sqlite I/O, context cancellation, ...).
	CodeUnknown Code = "Unknown"

	// CodeInvalidInstructionData covers malformed, truncated or unrecognized
	// encodings and semantically invalid parameters.
	CodeInvalidInstructionData Code = "InvalidInstructionData"
	CodeNotRentExempt          Code = "NotRentExempt"
	CodeInvalidAccountOwner    Code = "InvalidAccountOwner"
	CodeUninitializedAccount   Code = "UninitializedAccount"
	CodeIncorrectProgramID     Code = "IncorrectProgramId"
	CodeInvalidAccountData     Code = "InvalidAccountData"

	CodeTradeLoopVerificationFailed Code = "TradeLoopVerificationFailed"
	CodeMissingApprovals            Code = "MissingApprovals"
	CodeStepAlreadyExecuted         Code = "StepAlreadyExecuted"
	CodeUpgradeAuthorityMismatch    Code = "UpgradeAuthorityMismatch"
	CodeInvalidProgramVersion       Code = "InvalidProgramVersion"
	CodeInsufficientFunds           Code = "InsufficientFunds"
	CodeInvalidMetadataAccount      Code = "InvalidMetadataAccount"
	CodeTradeTimeoutExceeded        Code = "TradeTimeoutExceeded"
	CodeTooManyParticipants         Code = "TooManyParticipants"
	CodeCancellationDenied          Code = "CancellationDenied"
)

// ordinals fixes the numeric code of each category. The order is part of
// the wire contract; append only.
var ordinals = []Code{
	CodeInvalidInstructionData,
	CodeNotRentExempt,
	CodeInvalidAccountOwner,
	CodeUninitializedAccount,
	CodeIncorrectProgramID,
	CodeInvalidAccountData,
	CodeTradeLoopVerificationFailed,
	CodeMissingApprovals,
	CodeStepAlreadyExecuted,
	CodeUpgradeAuthorityMismatch,
	CodeInvalidProgramVersion,
	CodeInsufficientFunds,
	CodeInvalidMetadataAccount,
	CodeTradeTimeoutExceeded,
	CodeTooManyParticipants,
	CodeCancellationDenied,
}

// Ordinal returns the stable numeric code, or -1 for CodeUnknown and
// unrecognized codes.
func (c Code) Ordinal() int {
	for i, known := range ordinals {
		if known == c {
			return i
		}
	}
	return -1
}

// Known reports whether c is part of the taxonomy.
func (c Code) Known() bool {
	return c.Ordinal() >= 0
}

// ParseCode resolves a code name, as written in scenario files and gRPC
// status messages.
func ParseCode(s string) (Code, bool) {
	c := Code(s)
	return c, c.Known()
}

// Error is a categorized failure.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Details contains additional context (step index, asset, ...).
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is lets errors.Is match on the code alone:
// errors.Is(err, swaperr.New(swaperr.CodeMissingApprovals, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// With returns a copy of e carrying an extra detail.
func (e *Error) With(key, value string) *Error {
	out := &Error{Code: e.Code, Message: e.Message, Details: make(map[string]string, len(e.Details)+1)}
	for k, v := range e.Details {
		out.Details[k] = v
	}
	out.Details[key] = value
	return out
}

// New creates an Error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code from any error.
// Returns CodeUnknown if the error is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Is checks whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
