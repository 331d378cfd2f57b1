// Package peak implements the in-process overflow queue used when the
// shared-memory ring has no free block to offer (spec.md §4.4).
package peak

import "sync"

// Kind distinguishes the admission rules a frame is subject to:
// notifications and commands are always admitted, messages are
// capacity-gated (spec.md §4.4, §4.6).
type Kind int

const (
	KindMessage Kind = iota
	KindNotification
	KindCommand
)

// Entry is one encoded block image awaiting transfer into the ring,
// tagged with enough metadata to preserve the single-block vs.
// multi-block-sequence distinction on drain.
type Entry struct {
	Kind Kind
	// Blocks holds one 496-byte payload image for a single-block frame,
	// or the full ordered sequence (Message + MessageExtensions) for a
	// multi-block message, which must be transferred together under one
	// end_writing_sequence call (spec.md §4.4).
	Blocks [][]byte
	// OverflowCount is stamped onto the first block of this entry when
	// it is finally written to the ring.
	OverflowCount int32
}

// Buffer is an ordered FIFO of Entry, capacity-gated for KindMessage
// entries only. It is safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	// messageCount tracks how many of entries are KindMessage, so
	// capacity checks don't need to rescan the slice.
	messageCount int
}

// New creates a Buffer with the given message-frame capacity. Capacity
// has no effect on notifications/commands, which are always admitted.
func New(capacity int) *Buffer {
	return &Buffer{capacity: capacity}
}

// SetCapacity adjusts the message-frame capacity at runtime (the host
// surface exposes peak_buffer_capacity as a mutable property).
func (b *Buffer) SetCapacity(capacity int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.capacity = capacity
}

// TryPush admits e if it is a notification/command, or if it is a
// message and the buffer has not yet reached its message capacity. It
// reports whether the entry was admitted.
func (b *Buffer) TryPush(e Entry) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if e.Kind == KindMessage && b.messageCount >= b.capacity {
		return false
	}

	b.entries = append(b.entries, e)
	if e.Kind == KindMessage {
		b.messageCount++
	}
	return true
}

// Peek returns the oldest entry without removing it, or ok=false if
// empty. The coordinator uses this to attempt a ring transfer before
// committing to Pop.
func (b *Buffer) Peek() (e Entry, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return Entry{}, false
	}
	return b.entries[0], true
}

// Pop removes the oldest entry. Callers must have just successfully
// transferred it to the ring.
func (b *Buffer) Pop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return
	}
	if b.entries[0].Kind == KindMessage {
		b.messageCount--
	}
	b.entries = b.entries[1:]
}

// Len reports the total number of queued entries (messages, commands,
// and notifications combined).
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Empty reports whether the buffer currently holds nothing.
func (b *Buffer) Empty() bool {
	return b.Len() == 0
}

// Clear drops all queued entries, used on shutdown (spec.md §4.5).
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
	b.messageCount = 0
}
