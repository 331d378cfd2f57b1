package coordinator

import (
	"errors"
	"fmt"
)

// Sentinel errors the caller (root package logsink) recognizes to map
// onto the host-facing error taxonomy (spec.md §7) without this package
// importing the root package (which would create an import cycle).
var (
	ErrInvalidStateSentinel       = errors.New("invalid state")
	ErrRingFullSentinel           = errors.New("ring full")
	ErrCancellationSentinel       = errors.New("cancellation requested")
	ErrTransportSentinel          = errors.New("transport failure")
	ErrRingUnavailableSentinel    = errors.New("ring unavailable")
	ErrNoFreeBlockDuringHandshake = errors.New("no free block during handshake")
)

func errInvalidState(op, msg string) error {
	return fmt.Errorf("%s: %s: %w", op, msg, ErrInvalidStateSentinel)
}

func errCancellation(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrCancellationSentinel, cause)
}

func errRingFull() error {
	return ErrRingFullSentinel
}

func wrapTransport(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransportSentinel, cause)
}

func wrapRingUnavailable(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrRingUnavailableSentinel, cause)
}

func errNoFreeBlockDuringHandshake(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrNoFreeBlockDuringHandshake, cause)
}
