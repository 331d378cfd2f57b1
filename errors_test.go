package logsink

import (
	"errors"
	"io"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("Initialize", ErrCodeInvalidState, "already initializing")

	if err.Op != "Initialize" {
		t.Errorf("Expected Op=Initialize, got %s", err.Op)
	}
	if err.Code != ErrCodeInvalidState {
		t.Errorf("Expected Code=ErrCodeInvalidState, got %s", err.Code)
	}

	expected := "logsink: Initialize: already initializing"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestWrapErrorPreservesInnerCode(t *testing.T) {
	inner := NewError("RegisterLogSource", ErrCodeTransportFailure, "connect refused")
	wrapped := WrapError("handshake", ErrCodeServiceUnreachable, inner)

	if wrapped.Code != ErrCodeTransportFailure {
		t.Errorf("expected wrapped error to preserve inner code, got %s", wrapped.Code)
	}
	if wrapped.Op != "handshake" {
		t.Errorf("expected Op to be re-anchored at handshake, got %s", wrapped.Op)
	}
}

func TestWrapErrorMapsPlainError(t *testing.T) {
	wrapped := WrapError("openRing", ErrCodeRingUnavailable, io.ErrUnexpectedEOF)
	if wrapped.Code != ErrCodeRingUnavailable {
		t.Errorf("expected code ErrCodeRingUnavailable, got %s", wrapped.Code)
	}
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Error("expected wrapped error to satisfy errors.Is for the inner cause")
	}
}

func TestWrapErrorNilIsNil(t *testing.T) {
	if WrapError("op", ErrCodeTransportFailure, nil) != nil {
		t.Error("expected WrapError(nil) to return nil")
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("reserve", ErrCodeRingFull, "no free block")

	if !IsCode(err, ErrCodeRingFull) {
		t.Error("IsCode should return true for matching code")
	}
	if IsCode(err, ErrCodeTransportFailure) {
		t.Error("IsCode should return false for non-matching code")
	}
	if IsCode(nil, ErrCodeRingFull) {
		t.Error("IsCode should return false for nil error")
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := NewError("opA", ErrCodeRingCorrupted, "bad magic")
	b := NewError("opB", ErrCodeRingCorrupted, "bad signature")

	if !errors.Is(a, b) {
		t.Error("expected two *Error values with the same code to match via errors.Is")
	}

	c := NewError("opC", ErrCodeInvalidState, "re-entrant")
	if errors.Is(a, c) {
		t.Error("expected *Error values with different codes not to match")
	}
}
