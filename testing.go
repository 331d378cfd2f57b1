package logsink

import (
	"sync"

	"github.com/griffinplus/logsink/internal/coordinator"
	"github.com/griffinplus/logsink/internal/ring"
)

// MockControlChannel is a scriptable, in-memory stand-in for the control
// channel (internal/ctrl.Channel) so a host application can unit test its
// own integration against this client without a real local log service
// listening on a unix-domain socket.
type MockControlChannel struct {
	mu sync.Mutex

	RegisterErr   error
	UnregisterErr error
	QueryPid      int
	QueryErr      error
	SetWritingErr error

	registerCalls   int
	unregisterCalls int
	queryCalls      int
	setWritingCalls int

	lastSetWritingPid    int
	lastSetWritingEnable bool
}

// NewMockControlChannel returns a MockControlChannel that succeeds by
// default, reporting servicePid from QueryProcessID.
func NewMockControlChannel(servicePid int) *MockControlChannel {
	return &MockControlChannel{QueryPid: servicePid}
}

func (m *MockControlChannel) RegisterLogSource(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registerCalls++
	return m.RegisterErr
}

func (m *MockControlChannel) UnregisterLogSource(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unregisterCalls++
	return m.UnregisterErr
}

func (m *MockControlChannel) QueryProcessID() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++
	return m.QueryPid, m.QueryErr
}

func (m *MockControlChannel) SetWritingToLogFile(pid int, enable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setWritingCalls++
	m.lastSetWritingPid = pid
	m.lastSetWritingEnable = enable
	return m.SetWritingErr
}

// CallCounts returns the number of times each method has been invoked.
func (m *MockControlChannel) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"register":     m.registerCalls,
		"unregister":   m.unregisterCalls,
		"query_pid":   m.queryCalls,
		"set_writing": m.setWritingCalls,
	}
}

// LastSetWriting returns the pid/enable pair of the most recent
// SetWritingToLogFile call, for coalescing assertions.
func (m *MockControlChannel) LastSetWriting() (pid int, enable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSetWritingPid, m.lastSetWritingEnable
}

// Reset clears call counters (not scripted return values).
func (m *MockControlChannel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registerCalls, m.unregisterCalls, m.queryCalls, m.setWritingCalls = 0, 0, 0, 0
}

// MockRing is an in-memory stand-in for the shared-memory ring
// (internal/ring.Ring), backed by a plain slice instead of an mmap'd
// region. freeBlocks models the ring's free-stack size; DrainConsumed
// simulates the out-of-band consumer reading committed blocks and
// returning them to free, for exercising ring-saturation-and-recovery
// scenarios (spec.md §8 scenario 4) without shared memory.
type MockRing struct {
	mu          sync.Mutex
	payloadSize int32
	freeBlocks  int
	closed      bool

	committed []committedBlock

	beginCalls int
	endCalls   int
	abortCalls int
}

type committedBlock struct {
	payload       []byte
	overflowCount int32
}

// NewMockRing returns a MockRing with blockCount free slots and the given
// payload size (the real region always uses constants.PayloadSize).
func NewMockRing(blockCount int, payloadSize int32) *MockRing {
	return &MockRing{freeBlocks: blockCount, payloadSize: payloadSize}
}

func (r *MockRing) BeginWriting() (ring.Reserved, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beginCalls++
	if r.freeBlocks <= 0 {
		return ring.Reserved{}, false, nil
	}
	r.freeBlocks--
	buf := make([]byte, r.payloadSize)
	return ring.NewReserved(int32(r.beginCalls), buf), true, nil
}

func (r *MockRing) EndWriting(h ring.Reserved, bytesWritten int, overflowCount int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endCalls++
	buf := make([]byte, bytesWritten)
	copy(buf, h.Payload()[:bytesWritten])
	r.committed = append(r.committed, committedBlock{payload: buf, overflowCount: overflowCount})
	return nil
}

func (r *MockRing) EndWritingSequence(handles []ring.Reserved, sizes []int, overflowCount int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endCalls++
	for i, h := range handles {
		buf := make([]byte, sizes[i])
		copy(buf, h.Payload()[:sizes[i]])
		oc := int32(0)
		if i == 0 {
			oc = overflowCount
		}
		r.committed = append(r.committed, committedBlock{payload: buf, overflowCount: oc})
	}
	return nil
}

func (r *MockRing) AbortWriting(h ring.Reserved) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abortCalls++
	r.freeBlocks++
}

func (r *MockRing) PayloadSize() int32 { return r.payloadSize }

func (r *MockRing) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// DrainConsumed simulates the service-side consumer reading up to n of the
// oldest committed blocks and returning them to the free stack. It returns
// the raw payload images in commit order.
func (r *MockRing) DrainConsumed(n int) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > len(r.committed) {
		n = len(r.committed)
	}
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		out[i] = r.committed[i].payload
	}
	r.committed = r.committed[n:]
	r.freeBlocks += n
	return out
}

// Committed returns a snapshot of every block committed so far (without
// draining them), for assertions against submission order.
func (r *MockRing) Committed() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.committed))
	for i, c := range r.committed {
		out[i] = c.payload
	}
	return out
}

// CommittedOverflowCounts returns the overflow_count stamped on each
// committed block, in commit order, for drop-accounting assertions
// (spec.md §8).
func (r *MockRing) CommittedOverflowCounts() []int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int32, len(r.committed))
	for i, c := range r.committed {
		out[i] = c.overflowCount
	}
	return out
}

// IsClosed reports whether Close has been called.
func (r *MockRing) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// CallCounts returns the number of times each method has been invoked.
func (r *MockRing) CallCounts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]int{"begin": r.beginCalls, "end": r.endCalls, "abort": r.abortCalls}
}

// Compile-time interface checks.
var (
	_ coordinator.ControlChannel = (*MockControlChannel)(nil)
	_ coordinator.Ring           = (*MockRing)(nil)
)
