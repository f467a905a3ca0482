// Package errs defines the error vocabulary shared by every package in
// this module: a single chained Error type carrying a machine-readable
// Code, the operation that failed, and the wrapped cause.
package errs

import (
	"errors"
	"strings"
)

// Code classifies an Error for automated handling.
type Code string

const (
	// CodeAbsent marks a lookup that found no row where one was expected:
	// Resolve of an Id with no identity row, or Delete of an object with
	// no count row. Find and HasTag never return this: absence there is
	// an empty result or false.
	CodeAbsent Code = "absent"
	// CodeKVFailure marks a failure surfaced by the underlying store
	// (I/O, commit conflict). The operation was aborted; the caller may
	// retry.
	CodeKVFailure Code = "kv_failure"
	// CodeInvalidInput marks a caller error: empty tag list on find, an
	// Id of the wrong width, or a blob exceeding MaxBlobSize.
	CodeInvalidInput Code = "invalid_input"
	// CodeCorruption marks a store invariant found violated on read: a
	// posting with no matching count row, a malformed key or count
	// width, or a decrement that found nothing to decrement.
	CodeCorruption Code = "corruption"
)

// Error is the error type returned by every exported operation in this
// module. Op names the failing operation (e.g. "Tx.Add"); Err is
// the wrapped cause, which may itself be an *Error.
type Error struct {
	Code Code
	Op   string
	Err  error
}

// New constructs an Error wrapping err under op with the given code.
func New(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Error implements the error interface by writing out the recursive
// chain of operations.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(string(e.Code))
	}
	return b.String()
}

// Unwrap allows errors.Is/errors.As to walk the chain.
func (e *Error) Unwrap() error {
	return e.Err
}

// GetCode returns the code of err, if it (or something it wraps) is an
// *Error; otherwise it returns the empty Code. A zero Code on the
// outermost *Error falls through to the next wrapped *Error, mirroring
// how Op-only wrapping (no reclassification) is expected to behave.
func GetCode(err error) Code {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Err != nil {
		return GetCode(e.Err)
	}
	return ""
}

// Is reports whether err is (or wraps) an *Error with the given code.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}
