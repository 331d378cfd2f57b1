// Package procwatch provides a read-only liveness handle over another
// process, used by the connection coordinator to detect when the
// service process has terminated (spec.md §4.5, §5).
package procwatch

import "golang.org/x/sys/unix"

// Handle is a read-only reference to a process obtained from a pid
// returned by the control channel's QueryProcessID. It is never used to
// signal the process, only to probe for termination.
type Handle struct {
	pid int
}

// Open returns a Handle for pid. Opening never fails on this platform
// since liveness is probed lazily via signal 0; a process that has
// already exited by the time Open is called is simply reported dead on
// the first IsAlive call.
func Open(pid int) *Handle {
	return &Handle{pid: pid}
}

// Pid returns the watched process id.
func (h *Handle) Pid() int { return h.pid }

// IsAlive probes the process without affecting it, via kill(pid, 0):
// ESRCH means the process is gone; EPERM still means it exists (owned
// by another user); any other outcome is treated as alive to avoid
// spurious reconnects on transient probe errors.
func (h *Handle) IsAlive() bool {
	err := unix.Kill(h.pid, 0)
	if err == nil {
		return true
	}
	return err != unix.ESRCH
}

// Close releases the handle. There is nothing to release on this
// platform (no file descriptor is held), but the method exists to match
// the owning coordinator's open/close resource discipline.
func (h *Handle) Close() error { return nil }
