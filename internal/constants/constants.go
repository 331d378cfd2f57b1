// Package constants holds the default tunables and wire-layout sizes shared
// across the logsink client.
package constants

import (
	"strconv"
	"time"
)

// Default configuration values (spec.md §6).
const (
	// DefaultKernelObjectPrefix names the shared-memory region and control
	// channel when the host does not supply its own.
	DefaultKernelObjectPrefix = "Griffin+"

	// DefaultPeakBufferCapacity is the number of message-frame slots the
	// peak buffer admits before dropping (notifications are always
	// admitted regardless of this limit).
	DefaultPeakBufferCapacity = 0

	// DefaultLosslessMode controls whether a full ring blocks the caller
	// (true) or spills to the peak buffer / drops (false).
	DefaultLosslessMode = false

	// DefaultWriteToLogFile is pushed to the service at handshake time.
	DefaultWriteToLogFile = true
)

// Timing constants (spec.md §6, §9).
const (
	// DefaultAutoReconnectInterval is how often a Degraded connection
	// retries the handshake.
	DefaultAutoReconnectInterval = 15 * time.Second

	// ConnectivityCheckInterval is the heartbeat period while Operational.
	ConnectivityCheckInterval = 10 * time.Second

	// ConnectTimeout bounds every control-channel handshake exchange.
	// Per §9's Open Question resolution this is 1000ms for every
	// handshake call; only the shutdown-path UnregisterLogSource uses 0
	// (best effort, no deadline).
	ConnectTimeout = 1000 * time.Millisecond

	// LosslessRetryInterval is the fixed sleep between reserve attempts
	// while lossless_mode is enabled and the ring is full.
	LosslessRetryInterval = 20 * time.Millisecond
)

// Wire-layout sizes (spec.md §3, §6).
const (
	// PayloadSize is the user-visible payload size of each block (496
	// bytes), matching the fixed 496-byte variant record.
	PayloadSize = 496

	// BlockHeaderSize is the per-block header preceding the payload:
	// magic(4) + next_index(4) + data_size(4) + overflow_count(4).
	BlockHeaderSize = 16

	// CacheLineSize is the alignment granularity for both the region
	// header and each block's on-disk stride.
	CacheLineSize = 64

	// RingHeaderSignature identifies a valid ring region.
	RingHeaderSignature = "ALVA"

	// BlockMagic is the sanity value stamped into every block header.
	BlockMagic = 0x11223344

	// MaxShortMessageRunes is the number of UTF-16 code units that fit in
	// a Message frame's text field before an extension is needed.
	MaxShortMessageRunes = 224

	// MaxExtensionRunes is the number of UTF-16 code units that fit in a
	// MessageExtension frame's text field.
	MaxExtensionRunes = 244

	// ApplicationNameRunes is the fixed width of SetApplicationName.Name.
	ApplicationNameRunes = 244

	// SourceNameRunes is the fixed width of AddSourceName.Name.
	SourceNameRunes = 242

	// LogLevelNameRunes is the fixed width of AddLogLevelName.Name.
	LogLevelNameRunes = 242
)

// RegionNames builds the two candidate shared-memory region names for a
// given prefix and producer pid: the privileged "Global\" variant tried
// first, and the local fallback tried if that one is unavailable.
func RegionNames(prefix string, pid int) (global, local string) {
	local = prefix + " Log Message Queue - Source Process Id: " + strconv.Itoa(pid) + " - Shared Memory"
	global = `Global\` + local
	return global, local
}

// ControlChannelName builds the control channel's name for a given prefix.
func ControlChannelName(prefix string) string {
	return prefix + " Log Sink Server"
}
