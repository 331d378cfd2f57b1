package ring

import (
	"sync/atomic"
	"unsafe"

	"github.com/griffinplus/logsink/internal/constants"
)

// headerSize is the on-disk size of the region header, before the
// round-up to a 64-byte cache-line boundary (spec.md §3, §6).
const headerSize = 4 + 4 + 4 + 4 + 4 + 4

// headerStride is the header's actual footprint in the region: rounded
// up to CacheLineSize so the first block starts cache-line aligned.
const headerStride = ((headerSize + constants.CacheLineSize - 1) / constants.CacheLineSize) * constants.CacheLineSize

const (
	offSignature      = uintptr(0)
	offFreeStackHead  = uintptr(4)
	offUsedStackHead  = uintptr(8)
	offBlockCount     = uintptr(12)
	offPayloadSize    = uintptr(16)
	offBlockStride    = uintptr(20)
)

// header is a thin, offset-based accessor over the mapped region's first
// headerStride bytes. It never copies the backing memory; every read or
// write goes straight through atomic primitives on the mapped bytes, per
// spec.md §9's "unsafe memory" design note.
type header struct {
	base unsafe.Pointer
}

func (h header) signature() [4]byte {
	var sig [4]byte
	copy(sig[:], unsafe.Slice((*byte)(unsafe.Add(h.base, offSignature)), 4))
	return sig
}

func (h header) freeStackHead() int32 {
	return atomic.LoadInt32((*int32)(unsafe.Add(h.base, offFreeStackHead)))
}

func (h header) casFreeStackHead(old, new int32) bool {
	return atomic.CompareAndSwapInt32((*int32)(unsafe.Add(h.base, offFreeStackHead)), old, new)
}

func (h header) usedStackHead() int32 {
	return atomic.LoadInt32((*int32)(unsafe.Add(h.base, offUsedStackHead)))
}

func (h header) casUsedStackHead(old, new int32) bool {
	return atomic.CompareAndSwapInt32((*int32)(unsafe.Add(h.base, offUsedStackHead)), old, new)
}

func (h header) blockCount() int32 {
	return atomic.LoadInt32((*int32)(unsafe.Add(h.base, offBlockCount)))
}

func (h header) payloadSize() int32 {
	return atomic.LoadInt32((*int32)(unsafe.Add(h.base, offPayloadSize)))
}

func (h header) blockStride() int32 {
	return atomic.LoadInt32((*int32)(unsafe.Add(h.base, offBlockStride)))
}
