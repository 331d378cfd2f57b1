package ring

import "fmt"

// OpenError wraps a failure to open a region, distinguishing "no such
// region" from "region exists but its header is unusable" (spec.md §4.1).
type OpenError struct {
	Name string
	// NotFound is true when no shared-memory object exists under Name.
	NotFound bool
	// InvalidFormat is true when the region exists but its signature
	// does not match constants.RingHeaderSignature.
	InvalidFormat bool
	Err           error
}

func (e *OpenError) Error() string {
	switch {
	case e.NotFound:
		return fmt.Sprintf("ring: region %q not found: %v", e.Name, e.Err)
	case e.InvalidFormat:
		return fmt.Sprintf("ring: region %q has invalid signature", e.Name)
	default:
		return fmt.Sprintf("ring: failed to open region %q: %v", e.Name, e.Err)
	}
}

func (e *OpenError) Unwrap() error { return e.Err }

func newNotFoundError(name string, err error) error {
	return &OpenError{Name: name, NotFound: true, Err: err}
}

func newInvalidFormatError(name string) error {
	return &OpenError{Name: name, InvalidFormat: true}
}

// CorruptedError indicates a block failed its magic-number sanity check
// during an access (spec.md §4.1 "Failure semantics").
type CorruptedError struct {
	Index int32
	Magic uint32
}

func (e *CorruptedError) Error() string {
	return fmt.Sprintf("ring: block %d has invalid magic 0x%08x", e.Index, e.Magic)
}
