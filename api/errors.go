// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types shared by the reactor, task and pollset layers.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the module.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotSupported      = errors.New("operation not supported")
	ErrPollSetCreate     = errors.New("pollset: create failed")
	ErrPollSetClosed     = errors.New("pollset: closed")
	ErrPollSetFull       = errors.New("pollset: capacity exhausted")
	ErrAlreadyRegistered = errors.New("pollset: descriptor already registered")
	ErrNotRegistered     = errors.New("pollset: descriptor not registered")
	ErrPollTimeout       = errors.New("pollset: wait timed out")
	ErrQueueFull         = errors.New("control queue is full")
	ErrWakeup            = errors.New("pollset wakeup failed")
	ErrNotRunning        = errors.New("task is not running")
	ErrAlreadyStarted    = errors.New("task already started")
	ErrTaskDestroyed     = errors.New("task destroyed")
	ErrTimerDetached     = errors.New("timer does not belong to a queue")
	ErrPoolExhausted     = errors.New("message pool exhausted")

	// ErrStop is returned by message processing to end the run loop in an
	// orderly way. Any other non-nil error ends it as well but is logged.
	ErrStop = errors.New("stop requested")
)

// ErrorCode represents specific error conditions in the module.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeResourceExhausted
	ErrCodeTimeout
	ErrCodeNotSupported
	ErrCodeNotRunning
	ErrCodeWakeup
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid-argument"
	case ErrCodeResourceExhausted:
		return "resource-exhausted"
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeNotSupported:
		return "not-supported"
	case ErrCodeNotRunning:
		return "not-running"
	case ErrCodeWakeup:
		return "wakeup"
	default:
		return "internal"
	}
}

// Error is a structured error with a code, context and an optional cause.
// errors.Is matches against the cause, so callers can keep testing for the
// sentinels above.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapError creates a structured error around cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	e := NewError(code, message)
	e.Cause = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf returns the code carried by err, ErrCodeOK for nil and
// ErrCodeInternal for plain errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
