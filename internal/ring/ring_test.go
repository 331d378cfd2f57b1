package ring

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/griffinplus/logsink/internal/constants"
)

// buildTestRegion lays out a region byte slice exactly as a service
// creator would: header followed by blockCount blocks, all initially on
// the free stack in ascending index order.
func buildTestRegion(blockCount int32) []byte {
	stride := int32(((constants.PayloadSize + constants.BlockHeaderSize + constants.CacheLineSize - 1) /
		constants.CacheLineSize) * constants.CacheLineSize)

	size := int(headerStride) + int(blockCount)*int(stride)
	data := make([]byte, size)

	copy(data[offSignature:], constants.RingHeaderSignature)
	binary.LittleEndian.PutUint32(data[offFreeStackHead:], uint32(0))
	binary.LittleEndian.PutUint32(data[offUsedStackHead:], uint32(int32(-1)))
	binary.LittleEndian.PutUint32(data[offBlockCount:], uint32(blockCount))
	binary.LittleEndian.PutUint32(data[offPayloadSize:], uint32(constants.PayloadSize))
	binary.LittleEndian.PutUint32(data[offBlockStride:], uint32(stride))

	for i := int32(0); i < blockCount; i++ {
		base := int(headerStride) + int(i)*int(stride)
		next := i + 1
		if i == blockCount-1 {
			next = -1
		}
		binary.LittleEndian.PutUint32(data[base+int(blockOffMagic):], constants.BlockMagic)
		binary.LittleEndian.PutUint32(data[base+int(blockOffNextIndex):], uint32(next))
		binary.LittleEndian.PutUint32(data[base+int(blockOffDataSize):], 0)
		binary.LittleEndian.PutUint32(data[base+int(blockOffOverflowCount):], 0)
	}

	return data
}

func newTestRing(t *testing.T, blockCount int32) *Ring {
	t.Helper()
	data := buildTestRegion(blockCount)
	r, err := newRing(data, "test-region")
	require.NoError(t, err)
	return r
}

func TestOpenRejectsBadSignature(t *testing.T) {
	data := buildTestRegion(4)
	data[0] = 'X'
	_, err := newRing(data, "test-region")
	require.Error(t, err)
	var openErr *OpenError
	assert.ErrorAs(t, err, &openErr)
	assert.True(t, openErr.InvalidFormat)
}

func TestBeginWritingClaimsDistinctBlocks(t *testing.T) {
	r := newTestRing(t, 4)

	seen := map[int32]bool{}
	for i := 0; i < 4; i++ {
		h, ok, err := r.BeginWriting()
		require.NoError(t, err)
		require.True(t, ok)
		assert.False(t, seen[h.Index()], "block %d claimed twice", h.Index())
		seen[h.Index()] = true
		assert.Len(t, h.Payload(), constants.PayloadSize)
	}

	_, ok, err := r.BeginWriting()
	require.NoError(t, err)
	assert.False(t, ok, "free stack should be exhausted")
}

func TestEndWritingPushesToUsedStack(t *testing.T) {
	r := newTestRing(t, 2)

	h, ok, err := r.BeginWriting()
	require.NoError(t, err)
	require.True(t, ok)

	copy(h.Payload(), []byte("hello"))
	require.NoError(t, r.EndWriting(h, 5, 0))

	assert.Equal(t, h.Index(), r.hdr.usedStackHead())
	b := r.blockAt(h.Index())
	assert.Equal(t, int32(5), b.dataSize())
	assert.Equal(t, int32(-1), b.nextIndex())
}

func TestEndWritingRejectsOversizedPayload(t *testing.T) {
	r := newTestRing(t, 1)
	h, ok, err := r.BeginWriting()
	require.NoError(t, err)
	require.True(t, ok)

	err = r.EndWriting(h, constants.PayloadSize+1, 0)
	assert.Error(t, err)
}

func TestAbortWritingReturnsBlockToFreeStack(t *testing.T) {
	r := newTestRing(t, 1)
	h, ok, err := r.BeginWriting()
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = r.BeginWriting()
	require.NoError(t, err)
	assert.False(t, ok)

	r.AbortWriting(h)
	assert.Equal(t, h.Index(), r.hdr.freeStackHead())

	h2, ok, err := r.BeginWriting()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, h.Index(), h2.Index())
}

// drainUsedInOrder steals the used stack and reverses it, mirroring the
// consumer's begin_reading contract from spec.md §4.1, so tests can
// assert submission order without a real external consumer.
func drainUsedInOrder(r *Ring) []int32 {
	head := r.hdr.usedStackHead()
	if !r.hdr.casUsedStackHead(head, -1) {
		panic("concurrent drain in test")
	}
	var order []int32
	for head != -1 {
		order = append(order, head)
		head = r.blockAt(head).nextIndex()
	}
	// reverse: used stack is newest-first, submission order is oldest-first
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

func TestEndWritingSequencePreservesSubmissionOrder(t *testing.T) {
	r := newTestRing(t, 4)

	var handles []Reserved
	for i := 0; i < 4; i++ {
		h, ok, err := r.BeginWriting()
		require.NoError(t, err)
		require.True(t, ok)
		handles = append(handles, h)
	}

	require.NoError(t, r.EndWritingSequence(handles, []int{10, 20, 30, 40}, 7))

	order := drainUsedInOrder(r)
	require.Len(t, order, 4)
	for i, h := range handles {
		assert.Equal(t, h.Index(), order[i])
	}

	firstBlock := r.blockAt(handles[0].Index())
	assert.Equal(t, int32(7), firstBlock.overflowCount())
}

func TestEndWritingSequenceInterleavesWithSingleCommits(t *testing.T) {
	r := newTestRing(t, 6)

	single, ok, err := r.BeginWriting()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, r.EndWriting(single, 1, 0))

	var seq []Reserved
	for i := 0; i < 3; i++ {
		h, ok, err := r.BeginWriting()
		require.NoError(t, err)
		require.True(t, ok)
		seq = append(seq, h)
	}
	require.NoError(t, r.EndWritingSequence(seq, []int{1, 1, 1}, 0))

	order := drainUsedInOrder(r)
	require.Len(t, order, 4)
	assert.Equal(t, single.Index(), order[0])
	assert.Equal(t, seq[0].Index(), order[1])
	assert.Equal(t, seq[1].Index(), order[2])
	assert.Equal(t, seq[2].Index(), order[3])
}
