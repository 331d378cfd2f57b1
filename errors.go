package logsink

import (
	"errors"
	"fmt"
)

// ErrorCode is the high-level error taxonomy exposed to the host
// (spec.md §7).
type ErrorCode string

const (
	// ErrCodeTransportFailure covers control-channel connect/read/write
	// failures and timeouts.
	ErrCodeTransportFailure ErrorCode = "transport failure"
	// ErrCodeRingUnavailable means the shared region could not be opened
	// under either the global or local name.
	ErrCodeRingUnavailable ErrorCode = "ring unavailable"
	// ErrCodeRingCorrupted means a signature or block magic mismatch was
	// observed.
	ErrCodeRingCorrupted ErrorCode = "ring corrupted"
	// ErrCodeRingFull means no free block was available; normally
	// swallowed into the admission policy rather than surfaced.
	ErrCodeRingFull ErrorCode = "ring full"
	// ErrCodeNoFreeBlockDuringHandshake is fatal for the current
	// handshake attempt and promotes the coordinator to Degraded.
	ErrCodeNoFreeBlockDuringHandshake ErrorCode = "no free block during handshake"
	// ErrCodeServiceUnreachable means the service process handle
	// indicates termination.
	ErrCodeServiceUnreachable ErrorCode = "service unreachable"
	// ErrCodeInvalidState means a re-entrant initialize/shutdown, or an
	// operation on an uninitialized adapter.
	ErrCodeInvalidState ErrorCode = "invalid state"
	// ErrCodeCancellationRequested marks a cooperative abort of a
	// long-running operation.
	ErrCodeCancellationRequested ErrorCode = "cancellation requested"
)

// Error is the structured error type raised by handshake, shutdown, and
// any other non-hot-path operation (spec.md §7's propagation policy;
// enqueue_* never raises).
type Error struct {
	Op    string    // operation that failed (e.g. "Initialize", "handshake:register")
	Code  ErrorCode // high-level category
	Msg   string    // human-readable detail
	Inner error     // wrapped cause, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("logsink: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("logsink: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is comparison by error code, matching any other
// *Error sharing the same Code.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

// NewError creates a structured error with no wrapped cause.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WrapError wraps inner with this core's error context. If inner is
// already a structured *Error, its code is preserved and the message is
// re-anchored at op.
func WrapError(op string, code ErrorCode, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ie, ok := inner.(*Error); ok {
		return &Error{Op: op, Code: ie.Code, Msg: ie.Msg, Inner: ie}
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is (or wraps) an *Error with the given
// code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
