// Package ctrl implements the bidirectional control channel (spec.md
// §4.3): fixed-size request/reply records exchanged over a fresh
// connection per call, with a bounded connect timeout.
package ctrl

import "encoding/binary"

// Command tags a request's variant (spec.md §4.3, §6).
type Command uint32

const (
	CommandRegisterLogSource Command = iota + 1
	CommandUnregisterLogSource
	CommandQueryProcessID
	CommandSetWritingToLogFile
)

// requestSize is the fixed wire size of every request: a 4-byte command
// tag plus an 8-byte variant payload padded to the union size (pid +
// enable, the widest variant).
const requestSize = 4 + 4 + 4

// replySize is the fixed wire size of every reply: a 4-byte result plus
// a 4-byte variant payload (only QueryProcessID populates it).
const replySize = 4 + 4

// request is the wire image of one control-channel call.
type request struct {
	Command Command
	Pid     int32
	Enable  uint32
}

func (r request) marshal() []byte {
	buf := make([]byte, requestSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Command))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.Pid))
	binary.LittleEndian.PutUint32(buf[8:12], r.Enable)
	return buf
}

// reply is the wire image of a control-channel response.
type reply struct {
	Result bool
	Pid    int32
}

func unmarshalReply(buf []byte) reply {
	result := binary.LittleEndian.Uint32(buf[0:4]) != 0
	pid := int32(binary.LittleEndian.Uint32(buf[4:8]))
	return reply{Result: result, Pid: pid}
}
