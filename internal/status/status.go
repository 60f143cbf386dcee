// Package status defines the error taxonomy shared by every stage of program loading and execution.
//
// Every public operation reports its outcome as an error whose [Code] can be recovered with
// [CodeOf] or matched with errors.Is:
//
//	if errors.Is(err, status.InvalidArgument) {
//	    // caller-supplied data violated a declared contract
//	}
//
// Codes keep the numeric values of the runtime this package interoperates with, so they can be
// surfaced directly as process exit codes.
package status

import (
	"errors"
	"fmt"
)

// Code is a discriminated status value. The zero value is OK.
type Code uint32

// Status codes.
const (
	OK                     Code = 0x00
	Internal               Code = 0x01
	InvalidState           Code = 0x02
	EndOfMethod            Code = 0x03
	NotSupported           Code = 0x10
	NotImplemented         Code = 0x11
	InvalidArgument        Code = 0x12
	InvalidType            Code = 0x13
	OperatorMissing        Code = 0x14
	NotFound               Code = 0x20
	MemoryAllocationFailed Code = 0x21
	AccessFailed           Code = 0x22
	InvalidProgram         Code = 0x23
)

// String returns the name of the code.
func (c Code) String() string {
	switch c {
	case OK:
		return "Ok"
	case Internal:
		return "Internal"
	case InvalidState:
		return "InvalidState"
	case EndOfMethod:
		return "EndOfMethod"
	case NotSupported:
		return "NotSupported"
	case NotImplemented:
		return "NotImplemented"
	case InvalidArgument:
		return "InvalidArgument"
	case InvalidType:
		return "InvalidType"
	case OperatorMissing:
		return "OperatorMissing"
	case NotFound:
		return "NotFound"
	case MemoryAllocationFailed:
		return "MemoryAllocationFailed"
	case AccessFailed:
		return "AccessFailed"
	case InvalidProgram:
		return "InvalidProgram"
	default:
		return fmt.Sprintf("Code(%#x)", uint32(c))
	}
}

// Error implements the error interface so a bare Code can be used as a sentinel.
func (c Code) Error() string {
	return c.String()
}

// Stage identifies where in the load/bind/execute pipeline an error occurred.
type Stage int

// Pipeline stages.
const (
	StageUnknown Stage = iota
	StageInitialize
	StageProgramLoad
	StageMethodMeta
	StageBufferSize
	StagePlanning
	StageMethodLoad
	StageBind
	StageExecute
	StageOutput
)

// String returns a human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageInitialize:
		return "initialize"
	case StageProgramLoad:
		return "program-load"
	case StageMethodMeta:
		return "method-meta"
	case StageBufferSize:
		return "buffer-size"
	case StagePlanning:
		return "planning"
	case StageMethodLoad:
		return "method-load"
	case StageBind:
		return "bind"
	case StageExecute:
		return "execute"
	case StageOutput:
		return "output"
	default:
		return "unknown"
	}
}

// Error carries a Code, the stage that produced it, and an optional cause.
// Msg, when set, already describes the cause.
type Error struct {
	Code  Code
	Stage Stage
	Msg   string
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Stage != StageUnknown {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Stage, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the same Code as e.
func (e *Error) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.Code
}

// Errorf returns an *Error with the given code and formatted message.
// A %w verb in format is honored and becomes the cause.
// A cause carrying a different code keeps its message but not its code, so errors.Is
// only matches the code of the returned error.
func Errorf(code Code, format string, args ...any) error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{Code: code, Msg: wrapped.Error(), Err: detach(code, errors.Unwrap(wrapped))}
}

// Wrap attaches code and stage to err. A nil err stays nil.
func Wrap(code Code, stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Stage: stage, Msg: err.Error(), Err: detach(code, err)}
}

// detach strips status codes other than code from the chain of cause, keeping the
// innermost cause they wrapped.
func detach(code Code, cause error) error {
	if cause == nil {
		return nil
	}
	var inner *Error
	if errors.As(cause, &inner) {
		if inner.Code != code {
			return detach(code, inner.Err)
		}
		return cause
	}
	var c Code
	if errors.As(cause, &c) && c != code {
		return nil
	}
	return cause
}

// WithStage tags err with stage, preserving its code and cause.
// Errors that already carry a stage are re-tagged; errors without a code become Internal.
func WithStage(err error, stage Stage) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		if se.Stage == stage {
			return err
		}
		tagged := *se
		tagged.Stage = stage
		return &tagged
	}
	return &Error{Code: CodeOf(err), Stage: stage, Err: err}
}

// CodeOf extracts the status code from err. A nil error is OK and
// errors that carry no code are Internal.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Internal
}

// StageOf extracts the stage from err, or StageUnknown.
func StageOf(err error) Stage {
	var se *Error
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageUnknown
}
