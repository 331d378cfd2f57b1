package ctrl

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/griffinplus/logsink/internal/constants"
	"github.com/griffinplus/logsink/internal/logging"
)

// socketDir is where this core looks for the service's control-channel
// listening socket. The protocol's control channel was originally a
// Windows named pipe; on this platform it is a Unix domain socket under
// the same kernel-object namespace convention.
const socketDir = "/tmp"

func socketPath(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	return socketDir + "/" + name + ".sock"
}

// TransportError wraps any connect/send/receive failure or timeout on
// the control channel (spec.md §4.3, §7: ErrCodeTransportFailure).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ctrl: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Channel performs control-channel exchanges against the service's
// listening socket for a given kernel-object prefix. Every exchange
// opens a fresh connection, writes one request, reads one reply, and
// closes (spec.md §4.3).
type Channel struct {
	path   string
	logger *logging.Logger
}

// NewChannel builds a Channel for the given prefix; it does not connect
// until a call is made.
func NewChannel(prefix string) *Channel {
	return &Channel{
		path:   socketPath(constants.ControlChannelName(prefix)),
		logger: logging.Default().With("component", "ctrl"),
	}
}

// exchange opens a connection bounded by timeout (0 means no deadline,
// used only by the shutdown-path best-effort unregister per spec.md
// §9), writes req, and reads back one reply.
func (c *Channel) exchange(req request, timeout time.Duration) (reply, error) {
	var conn net.Conn
	var err error
	if timeout > 0 {
		conn, err = net.DialTimeout("unix", c.path, timeout)
	} else {
		conn, err = net.Dial("unix", c.path)
	}
	if err != nil {
		return reply{}, &TransportError{Op: "connect", Err: err}
	}
	defer conn.Close()

	if timeout > 0 {
		deadline := time.Now().Add(timeout)
		if err := conn.SetDeadline(deadline); err != nil {
			return reply{}, &TransportError{Op: "set deadline", Err: err}
		}
	}

	if _, err := conn.Write(req.marshal()); err != nil {
		return reply{}, &TransportError{Op: "write", Err: err}
	}

	buf := make([]byte, replySize)
	if _, err := readFull(conn, buf); err != nil {
		return reply{}, &TransportError{Op: "read", Err: err}
	}

	return unmarshalReply(buf), nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// RegisterLogSource registers pid with the service. Handshake step 1
// (spec.md §4.5).
func (c *Channel) RegisterLogSource(pid int) error {
	rep, err := c.exchange(request{Command: CommandRegisterLogSource, Pid: int32(pid)}, constants.ConnectTimeout)
	if err != nil {
		return err
	}
	if !rep.Result {
		return fmt.Errorf("ctrl: RegisterLogSource(%d) rejected by service", pid)
	}
	c.logger.Debugf("registered log source pid=%d", pid)
	return nil
}

// UnregisterLogSource is always best-effort: the shutdown path uses a
// zero timeout (no deadline) per spec.md §9's Open Question resolution,
// and callers are expected to ignore its error.
func (c *Channel) UnregisterLogSource(pid int) error {
	_, err := c.exchange(request{Command: CommandUnregisterLogSource, Pid: int32(pid)}, 0)
	return err
}

// QueryProcessID asks the service for its own pid. Handshake step 2.
func (c *Channel) QueryProcessID() (int, error) {
	rep, err := c.exchange(request{Command: CommandQueryProcessID}, constants.ConnectTimeout)
	if err != nil {
		return 0, err
	}
	if !rep.Result {
		return 0, fmt.Errorf("ctrl: QueryProcessID rejected by service")
	}
	return int(rep.Pid), nil
}

// SetWritingToLogFile pushes the current persistence setting. Handshake
// step 3 is non-fatal on failure; callers there should log and proceed.
func (c *Channel) SetWritingToLogFile(pid int, enable bool) error {
	var enableBit uint32
	if enable {
		enableBit = 1
	}
	rep, err := c.exchange(request{Command: CommandSetWritingToLogFile, Pid: int32(pid), Enable: enableBit}, constants.ConnectTimeout)
	if err != nil {
		return err
	}
	if !rep.Result {
		return fmt.Errorf("ctrl: SetWritingToLogFile(%d, %v) rejected by service", pid, enable)
	}
	return nil
}
