package coordinator

import "github.com/griffinplus/logsink/internal/ring"

// ControlChannel is the subset of internal/ctrl.Channel the coordinator
// drives during handshake and shutdown. It is an interface so tests can
// substitute a fake service without a real unix-domain-socket listener.
type ControlChannel interface {
	RegisterLogSource(pid int) error
	UnregisterLogSource(pid int) error
	QueryProcessID() (int, error)
	SetWritingToLogFile(pid int, enable bool) error
}

// Ring is the subset of internal/ring.Ring the coordinator drives once the
// shared-memory region has been opened.
type Ring interface {
	BeginWriting() (ring.Reserved, bool, error)
	EndWriting(h ring.Reserved, bytesWritten int, overflowCount int32) error
	EndWritingSequence(handles []ring.Reserved, sizes []int, overflowCount int32) error
	AbortWriting(h ring.Reserved)
	PayloadSize() int32
	Close() error
}

// ProcessHandle reports liveness of the service process discovered during
// handshake (internal/procwatch.Handle satisfies this structurally).
type ProcessHandle interface {
	IsAlive() bool
	Close() error
}

// RingOpener opens the shared-memory ring under the given kernel-object
// prefix for the calling process' pid.
type RingOpener func(prefix string, pid int) (Ring, error)

// ProcessOpener opens a liveness handle for a given pid.
type ProcessOpener func(pid int) ProcessHandle
