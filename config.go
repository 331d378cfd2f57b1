package logsink

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/griffinplus/logsink/internal/constants"
)

// Config covers every item in spec.md §6's "Configuration recognized"
// list, plus the application name and the log level/writer registries
// known at construction time (replayed during the first handshake).
type Config struct {
	// KernelObjectPrefix names the shared-memory region and control
	// channel (default "Griffin+").
	KernelObjectPrefix string `yaml:"kernel_object_prefix"`
	// ApplicationName is pushed via SetApplicationName during handshake.
	ApplicationName string `yaml:"application_name"`
	// AutoReconnectInterval is how often a Degraded connection retries
	// the handshake (default 15s).
	AutoReconnectInterval time.Duration `yaml:"auto_reconnect_interval"`
	// PeakBufferCapacity is the number of message-frame slots the peak
	// buffer holds before dropping (default 0).
	PeakBufferCapacity int `yaml:"peak_buffer_capacity"`
	// LosslessMode, if true, blocks and retries on a full ring instead
	// of spilling to the peak buffer or dropping (default false).
	LosslessMode bool `yaml:"lossless_mode"`
	// WriteToLogFile is pushed to the service at handshake time and on
	// every SetWriteToLogFile call (default true).
	WriteToLogFile bool `yaml:"write_to_log_file"`

	// LogLevels/LogWriters seed the registries replayed at handshake, in
	// ascending id order (spec.md §4.5 steps 7-8).
	LogLevels  []LogLevel  `yaml:"log_levels"`
	LogWriters []LogWriter `yaml:"log_writers"`
}

// DefaultConfig returns the defaults named in spec.md §6.
func DefaultConfig() *Config {
	return &Config{
		KernelObjectPrefix:    constants.DefaultKernelObjectPrefix,
		AutoReconnectInterval: constants.DefaultAutoReconnectInterval,
		PeakBufferCapacity:    constants.DefaultPeakBufferCapacity,
		LosslessMode:          constants.DefaultLosslessMode,
		WriteToLogFile:        constants.DefaultWriteToLogFile,
	}
}

// LoadConfig reads a YAML configuration file, applying DefaultConfig()
// values for any field the file omits.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapError("LoadConfig", ErrCodeInvalidState, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, WrapError("LoadConfig", ErrCodeInvalidState, err)
	}

	return cfg, nil
}
