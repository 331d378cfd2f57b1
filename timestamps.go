package logsink

import "time"

// fileTimeEpochOffset is the number of 100ns intervals between the
// file-time epoch (1601-01-01 UTC) and the Unix epoch (1970-01-01 UTC).
const fileTimeEpochOffset = 116444736000000000

// toFileTime converts a wall-clock instant to 100ns ticks since
// 1601-01-01 UTC, the convention used by Message/ClearLogViewer/
// SaveSnapshot's ft_timestamp field (spec.md §4.2).
func toFileTime(t time.Time) int64 {
	return t.UnixNano()/100 + fileTimeEpochOffset
}

var processStart = time.Now()

// toHighPrecisionMicros derives a monotonic microsecond clock by rounding
// nanoseconds since process start to the nearest microsecond, per
// spec.md §4.2's "(ns + 500) / 1000" convention.
func toHighPrecisionMicros(t time.Time) int64 {
	ns := t.Sub(processStart).Nanoseconds()
	return (ns + 500) / 1000
}
