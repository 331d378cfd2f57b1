package ring

import (
	"sync/atomic"
	"unsafe"

	"github.com/griffinplus/logsink/internal/constants"
)

// Per-block header layout: magic(4) + next_index(4) + data_size(4) +
// overflow_count(4), matching constants.BlockHeaderSize (spec.md §3).
const (
	blockOffMagic         = uintptr(0)
	blockOffNextIndex     = uintptr(4)
	blockOffDataSize      = uintptr(8)
	blockOffOverflowCount = uintptr(12)
	blockPayloadOffset    = uintptr(constants.BlockHeaderSize)
)

// block is an offset-based accessor over one block's bytes, anchored at
// the block's own base address (region base + index*block_stride).
type block struct {
	base unsafe.Pointer
}

func (b block) magic() uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Add(b.base, blockOffMagic)))
}

func (b block) nextIndex() int32 {
	return atomic.LoadInt32((*int32)(unsafe.Add(b.base, blockOffNextIndex)))
}

func (b block) setNextIndex(v int32) {
	atomic.StoreInt32((*int32)(unsafe.Add(b.base, blockOffNextIndex)), v)
}

func (b block) setDataSize(v int32) {
	atomic.StoreInt32((*int32)(unsafe.Add(b.base, blockOffDataSize)), v)
}

func (b block) setOverflowCount(v int32) {
	atomic.StoreInt32((*int32)(unsafe.Add(b.base, blockOffOverflowCount)), v)
}

func (b block) dataSize() int32 {
	return atomic.LoadInt32((*int32)(unsafe.Add(b.base, blockOffDataSize)))
}

func (b block) overflowCount() int32 {
	return atomic.LoadInt32((*int32)(unsafe.Add(b.base, blockOffOverflowCount)))
}

// payload returns the block's payload area as a byte slice backed
// directly by the mapped region. Callers must not retain it past the
// holding reserve/commit/abort call.
func (b block) payload(payloadSize int32) []byte {
	return unsafe.Slice((*byte)(unsafe.Add(b.base, blockPayloadOffset)), int(payloadSize))
}
