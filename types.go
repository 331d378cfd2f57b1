package logsink

// LogMessage is a single structured log event handed to EnqueueMessage by
// the host's pipeline stage (spec.md §4.6).
type LogMessage struct {
	Text     string
	LevelID  int32
	SourceID int32
}

// LogLevel is a log-level identifier/name pair as known to the host's
// log-level registry (spec.md §4.6's metadata replay).
type LogLevel struct {
	ID   int32
	Name string
}

// LogWriter is a log-source identifier/name pair as known to the host's
// log-writer registry.
type LogWriter struct {
	ID   int32
	Name string
}
