package casm

import (
	"errors"
	"fmt"
	"strings"
)

// Error is the pipeline error domain type.
//
// Errors coming from pipeline components should be able to be inspected as
// ([errors.As]) an *Error at some point in the error chain.
//
// Components should create an Error at the system boundary (e.g. when calling
// the graph store, the NVD API, or a child process) and intermediate layers
// should not wrap in another Error except to add additional [ErrorKind]
// information. That is to say, use [fmt.Errorf] with a "%w" verb in preference
// to creating a containing Error.
type Error struct {
	Inner   error
	Kind    ErrorKind
	Message string
	Op      string
}

// Assert the interface set.
var (
	_ error                       = (*Error)(nil)
	_ interface{ Is(error) bool } = (*Error)(nil)
	_ interface{ Unwrap() error } = (*Error)(nil)
)

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	b.WriteString("[")
	b.WriteString(string(e.Kind))
	b.WriteString("]: ")
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.Message != "" && e.Inner != nil {
		b.WriteString(": ")
	}
	if e.Op == "" && e.Message == "" {
		b.Reset()
	}
	if e.Inner != nil {
		b.WriteString(e.Inner.Error())
	}
	return b.String()
}

// Is enables [errors.Is].
//
// It compares the error kind. Callers should compare against a declared
// [ErrorKind] over a specific error.
func (e *Error) Is(kind error) bool {
	return errors.Is(e.Kind, kind)
}

// Unwrap enables [errors.Unwrap].
func (e *Error) Unwrap() error {
	return e.Inner
}

// ErrorKind represents classes of errors to be checked against.
//
// The kind names double as Temporal application error types, so retry
// policies can mark classes non-retryable by name.
type ErrorKind string

// Defined error kinds.
var (
	ErrBadInput        = ErrorKind("BadInput")               // request or record fails validation
	ErrTransient       = ErrorKind("TransientNetwork")       // network failure, may succeed on retry
	ErrRateLimited     = ErrorKind("RateLimited")            // upstream 429
	ErrNoDomainsFound  = ErrorKind("NoDomainsFoundError")    // enumeration configured with no domains
	ErrStoreTransient  = ErrorKind("StoreTransient")         // retriable graph store failure
	ErrStoreConstraint = ErrorKind("StoreConstraint")        // constraint violation in the graph store
	ErrScheduleExists  = ErrorKind("ScheduleAlreadyRunning") // schedule already present, benign
	ErrTool            = ErrorKind("EnumerationToolError")   // child scanning tool failed
)

// Error implements error.
func (e ErrorKind) Error() string {
	return string(e)
}

// ToolError reports a child scanning tool that exited nonzero.
//
// It carries the [ErrTool] kind and keeps a tail of the tool's stderr for the
// log line.
func ToolError(tool string, exitCode int, stderr string) *Error {
	return &Error{
		Kind:    ErrTool,
		Op:      tool,
		Message: fmt.Sprintf("exit status %d: %s", exitCode, strings.TrimSpace(stderr)),
	}
}
