// Package ring implements the wait-free multi-producer/single-consumer
// shared-memory block queue: a region header plus N fixed-stride blocks
// linked into a free stack and a used stack via CAS (spec.md §3, §4.1).
package ring

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/griffinplus/logsink/internal/constants"
)

// Ring is a handle to an opened, mapped shared-memory region. It is safe
// for concurrent use by multiple producer goroutines; callers that must
// also serialize multi-block sequences against each other (this core's
// own coordinator) still need an external mutex, per spec.md §4.5's
// "concurrency guard" — the ring itself only guarantees single-block
// CAS correctness.
type Ring struct {
	data        []byte
	hdr         header
	blockCount  int32
	payloadSize int32
	blockStride int32
	name        string
}

// Open maps the shared-memory region for the given kernel-object prefix
// and producer pid. It tries the privileged global name first, falling
// back to the local name, per spec.md §4.1/§6.
func Open(prefix string, pid int) (*Ring, error) {
	global, local := constants.RegionNames(prefix, pid)

	data, err := openExistingRegion(global)
	usedName := global
	if err != nil {
		data, err = openExistingRegion(local)
		usedName = local
		if err != nil {
			return nil, err
		}
	}

	r, err := newRing(data, usedName)
	if err != nil {
		unmapRegion(data)
		return nil, err
	}
	return r, nil
}

func newRing(data []byte, name string) (*Ring, error) {
	hdr := header{base: unsafe.Pointer(&data[0])}
	sig := hdr.signature()
	if !bytes.Equal(sig[:], []byte(constants.RingHeaderSignature)) {
		return nil, newInvalidFormatError(name)
	}

	r := &Ring{
		data:        data,
		hdr:         hdr,
		blockCount:  hdr.blockCount(),
		payloadSize: hdr.payloadSize(),
		blockStride: hdr.blockStride(),
		name:        name,
	}

	required := headerStride + int(r.blockCount)*int(r.blockStride)
	if required > len(data) {
		return nil, newInvalidFormatError(name)
	}
	return r, nil
}

// Close unmaps the region. It does not destroy the underlying
// shared-memory object, which remains owned by the service creator.
func (r *Ring) Close() error {
	err := unmapRegion(r.data)
	r.data = nil
	return err
}

// Name returns the region name this ring was opened under.
func (r *Ring) Name() string { return r.name }

// PayloadSize is the user-visible payload size of each block.
func (r *Ring) PayloadSize() int32 { return r.payloadSize }

// BlockCount is the number of blocks N in the region.
func (r *Ring) BlockCount() int32 { return r.blockCount }

func (r *Ring) blockAt(index int32) block {
	offset := headerStride + int(index)*int(r.blockStride)
	return block{base: unsafe.Add(unsafe.Pointer(&r.data[0]), offset)}
}

// checkMagic validates a fetched block's sanity sentinel, per spec.md
// §4.1's "Failure semantics": any mismatch is fatal corruption.
func (r *Ring) checkMagic(index int32, b block) error {
	if m := b.magic(); m != constants.BlockMagic {
		return &CorruptedError{Index: index, Magic: m}
	}
	return nil
}

// Reserved is an exclusive handle to a free block claimed by
// BeginWriting, not yet committed or aborted.
type Reserved struct {
	index   int32
	payload []byte
}

// Index exposes the block index, primarily for tests asserting ordering.
func (h Reserved) Index() int32 { return h.index }

// Payload returns the writable payload area backing the reserved block.
func (h Reserved) Payload() []byte { return h.payload }

// NewReserved builds a Reserved handle directly from an index and backing
// slice. It exists for test doubles (e.g. a MockRing) that need to hand
// out handles without a real mmap'd region behind them.
func NewReserved(index int32, payload []byte) Reserved {
	return Reserved{index: index, payload: payload}
}

// BeginWriting claims one free block by CAS-popping the free stack. It
// returns ok=false (not an error) if the free stack is empty; callers
// decide whether to spill, block, or drop (spec.md §4.1).
func (r *Ring) BeginWriting() (handle Reserved, ok bool, err error) {
	for {
		head := r.hdr.freeStackHead()
		if head == -1 {
			return Reserved{}, false, nil
		}
		b := r.blockAt(head)
		if cerr := r.checkMagic(head, b); cerr != nil {
			return Reserved{}, false, cerr
		}
		next := b.nextIndex()
		if !r.hdr.casFreeStackHead(head, next) {
			continue
		}
		b.setOverflowCount(0)
		b.setNextIndex(-1)
		return Reserved{index: head, payload: b.payload(r.payloadSize)}, true, nil
	}
}

// pushUsed CAS-loops the used stack to push the single block headIndex,
// linking its next_index to the current head, per spec.md §4.1's commit
// contract. Multi-block chains are pushed by EndWritingSequence instead.
func (r *Ring) pushUsed(headIndex int32, headBlock block) {
	for {
		current := r.hdr.usedStackHead()
		headBlock.setNextIndex(current)
		if r.hdr.casUsedStackHead(current, headIndex) {
			return
		}
	}
}

// EndWriting commits a single reserved block: stores bytesWritten and
// overflowCount, then pushes it onto the used stack (spec.md §4.1).
func (r *Ring) EndWriting(h Reserved, bytesWritten int, overflowCount int32) error {
	if int32(bytesWritten) > r.payloadSize {
		return fmt.Errorf("ring: EndWriting: bytesWritten %d exceeds payload size %d", bytesWritten, r.payloadSize)
	}
	b := r.blockAt(h.index)
	b.setDataSize(int32(bytesWritten))
	b.setOverflowCount(overflowCount)
	r.pushUsed(h.index, b)
	return nil
}

// EndWritingSequence commits a contiguous multi-block message as a
// single used-stack push. Per spec.md §4.1, the singly linked list is
// built in the reverse of submission order (blocks[n-1] becomes the new
// head and blocks[0] the tail), because push-to-head plus the consumer's
// drain-and-reverse restores submission order on read.
func (r *Ring) EndWritingSequence(handles []Reserved, sizes []int, overflowCount int32) error {
	if len(handles) == 0 {
		return fmt.Errorf("ring: EndWritingSequence: empty sequence")
	}
	if len(handles) != len(sizes) {
		return fmt.Errorf("ring: EndWritingSequence: handles/sizes length mismatch")
	}
	for i, sz := range sizes {
		if int32(sz) > r.payloadSize {
			return fmt.Errorf("ring: EndWritingSequence: bytesWritten %d exceeds payload size %d at index %d", sz, r.payloadSize, i)
		}
		b := r.blockAt(handles[i].index)
		b.setDataSize(int32(sz))
	}

	// Link blocks[n-1] -> blocks[n-2] -> ... -> blocks[0] -> (old used head),
	// so reading head-to-tail after the reader's reversal yields
	// blocks[0], blocks[1], ..., blocks[n-1]: submission order.
	last := len(handles) - 1
	for i := last; i > 0; i-- {
		cur := r.blockAt(handles[i].index)
		cur.setNextIndex(handles[i-1].index)
	}

	headIndex := handles[last].index
	// overflow_count goes on blocks[0], the block the consumer reads first.
	r.blockAt(handles[0].index).setOverflowCount(overflowCount)

	for {
		current := r.hdr.usedStackHead()
		r.blockAt(handles[0].index).setNextIndex(current)
		if r.hdr.casUsedStackHead(current, headIndex) {
			return nil
		}
	}
}

// AbortWriting returns a reserved block to the free stack without
// committing it, used when a multi-block reserve fails midway (spec.md
// §4.1).
func (r *Ring) AbortWriting(h Reserved) {
	b := r.blockAt(h.index)
	for {
		current := r.hdr.freeStackHead()
		b.setNextIndex(current)
		if r.hdr.casFreeStackHead(current, h.index) {
			return
		}
	}
}
