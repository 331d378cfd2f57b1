package logsink

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/griffinplus/logsink/internal/constants"
	"github.com/griffinplus/logsink/internal/coordinator"
	"github.com/griffinplus/logsink/internal/ctrl"
	"github.com/griffinplus/logsink/internal/logging"
	"github.com/griffinplus/logsink/internal/procwatch"
	"github.com/griffinplus/logsink/internal/ring"
	"github.com/griffinplus/logsink/internal/wire"
)

// Client is the external-interface adapter (C6): the host-facing surface
// a logging pipeline stage drives to forward log events, level/writer
// registrations, and viewer commands to the local log service.
type Client struct {
	coord   *coordinator.Coordinator
	metrics *Metrics
	pid     int
}

// NewClient constructs a Client wired to the real control channel and
// shared-memory ring under cfg.KernelObjectPrefix. It does not connect;
// call Initialize to run the handshake.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	pid := os.Getpid()
	metrics := NewMetrics()
	channel := ctrl.NewChannel(cfg.KernelObjectPrefix)
	timed := &timedControlChannel{inner: channel, metrics: metrics}

	coordCfg := coordinator.Config{
		Prefix:                    cfg.KernelObjectPrefix,
		ApplicationName:           cfg.ApplicationName,
		AutoReconnectInterval:     cfg.AutoReconnectInterval,
		ConnectivityCheckInterval: constants.ConnectivityCheckInterval,
		PeakBufferCapacity:        cfg.PeakBufferCapacity,
		LosslessMode:              cfg.LosslessMode,
		WriteToLogFile:            cfg.WriteToLogFile,
	}

	openRing := func(prefix string, pid int) (coordinator.Ring, error) {
		return ring.Open(prefix, pid)
	}
	openProcess := func(pid int) coordinator.ProcessHandle {
		return procwatch.Open(pid)
	}

	coord := coordinator.New(coordCfg, pid, timed, openRing, openProcess)
	coord.SetObserver(&metricsObserver{metrics: metrics})

	c := &Client{coord: coord, metrics: metrics, pid: pid}

	for _, lvl := range cfg.LogLevels {
		coord.RegisterLogLevel(lvl.ID, lvl.Name)
	}
	for _, w := range cfg.LogWriters {
		coord.RegisterLogWriter(w.ID, w.Name)
	}

	return c, nil
}

// newClientWithDependencies builds a Client around injected dependencies,
// for tests that want to drive the coordinator against MockControlChannel
// / MockRing without a real service.
func newClientWithDependencies(cfg *Config, pid int, ctrlCh coordinator.ControlChannel, openRing coordinator.RingOpener, openProcess coordinator.ProcessOpener) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	metrics := NewMetrics()
	coordCfg := coordinator.Config{
		Prefix:                    cfg.KernelObjectPrefix,
		ApplicationName:           cfg.ApplicationName,
		AutoReconnectInterval:     cfg.AutoReconnectInterval,
		ConnectivityCheckInterval: constants.ConnectivityCheckInterval,
		PeakBufferCapacity:        cfg.PeakBufferCapacity,
		LosslessMode:              cfg.LosslessMode,
		WriteToLogFile:            cfg.WriteToLogFile,
	}
	coord := coordinator.New(coordCfg, pid, ctrlCh, openRing, openProcess)
	coord.SetObserver(&metricsObserver{metrics: metrics})
	return &Client{coord: coord, metrics: metrics, pid: pid}
}

// Metrics exposes this client's Prometheus collectors.
func (c *Client) Metrics() *Metrics { return c.metrics }

// Initialize runs the handshake sequence (spec.md §4.5). Idempotent if
// already established.
func (c *Client) Initialize(ctx context.Context) error {
	start := time.Now()
	err := c.coord.Initialize(ctx)
	c.metrics.HandshakeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return mapCoordinatorErr("Initialize", err)
	}
	return nil
}

// Shutdown tears down the connection (spec.md §4.5). Idempotent.
func (c *Client) Shutdown(ctx context.Context) error {
	if err := c.coord.Shutdown(ctx); err != nil {
		return mapCoordinatorErr("Shutdown", err)
	}
	return nil
}

// IsInitialized reports whether Initialize has been called and Shutdown
// has not yet completed.
func (c *Client) IsInitialized() bool {
	switch c.coord.State() {
	case coordinator.Handshaking, coordinator.Operational, coordinator.Degraded, coordinator.ShuttingDown:
		return true
	default:
		return false
	}
}

// IsEstablished reports whether the coordinator currently holds an
// operational, handshaken connection.
func (c *Client) IsEstablished() bool { return c.coord.IsEstablished() }

// LostMessageCount is the monotonic count of messages dropped because
// both the ring and the peak buffer were full (SPEC_FULL.md supplement #3).
func (c *Client) LostMessageCount() uint64 { return c.coord.LostMessageCount() }

// EnqueueMessage admits a log message onto the ring or the peak buffer,
// splitting it into a Message plus MessageExtension frames if needed
// (spec.md §4.2, §4.6). Never raises; returns false on drop.
func (c *Client) EnqueueMessage(msg LogMessage) bool {
	now := time.Now()
	m, exts, err := wire.SplitMessage(msg.Text)
	if err != nil {
		logging.Default().Error("failed to split message text", "error", err)
		return false
	}
	m.FtTimestamp = toFileTime(now)
	m.HpTimestampUs = toHighPrecisionMicros(now)
	m.SourceID = msg.SourceID
	m.LevelID = msg.LevelID
	m.Pid = int32(c.pid)

	frames := make([]wire.Frame, 0, 1+len(exts))
	frames = append(frames, m)
	for _, e := range exts {
		frames = append(frames, e)
	}

	ok := c.coord.SubmitMessage(frames)
	if ok {
		c.metrics.MessagesEnqueued.Inc()
		c.metrics.ExtensionsWritten.Add(float64(len(exts)))
	} else {
		c.metrics.MessagesDropped.Inc()
	}
	c.metrics.PeakBufferDepth.Set(float64(c.coord.PeakBufferLen()))
	return ok
}

// EnqueueLogLevelAdded notifies the service of a new log level. Always
// admitted (metadata).
func (c *Client) EnqueueLogLevelAdded(level LogLevel) {
	c.coord.RegisterLogLevel(level.ID, level.Name)
	c.metrics.NotificationsSent.Inc()
}

// EnqueueLogWriterAdded notifies the service of a new log writer (source).
// Always admitted (metadata).
func (c *Client) EnqueueLogWriterAdded(writer LogWriter) {
	c.coord.RegisterLogWriter(writer.ID, writer.Name)
	c.metrics.NotificationsSent.Inc()
}

// EnqueueClearViewer requests the consumer clear its live viewer.
func (c *Client) EnqueueClearViewer() bool {
	now := time.Now()
	f := wire.ClearLogViewer{
		FtTimestamp:   toFileTime(now),
		Pid:           int32(c.pid),
		HpTimestampUs: toHighPrecisionMicros(now),
	}
	ok := c.coord.SubmitCommand(f)
	c.metrics.CommandsSent.Inc()
	return ok
}

// EnqueueSaveSnapshot requests the consumer save a snapshot of the log.
func (c *Client) EnqueueSaveSnapshot() bool {
	now := time.Now()
	f := wire.SaveSnapshot{
		FtTimestamp:   toFileTime(now),
		Pid:           int32(c.pid),
		HpTimestampUs: toHighPrecisionMicros(now),
	}
	ok := c.coord.SubmitCommand(f)
	c.metrics.CommandsSent.Inc()
	return ok
}

// SetAutoReconnectInterval sets the cadence of reconnect attempts while
// Degraded (default 15s).
func (c *Client) SetAutoReconnectInterval(d time.Duration) { c.coord.SetAutoReconnectInterval(d) }

// SetPeakBufferCapacity adjusts the message-frame capacity of the peak
// buffer.
func (c *Client) SetPeakBufferCapacity(n int) { c.coord.SetPeakBufferCapacity(n) }

// SetLosslessMode toggles whether a full ring blocks and retries instead
// of spilling/dropping.
func (c *Client) SetLosslessMode(enabled bool) { c.coord.SetLosslessMode(enabled) }

// SetWriteToLogFile asynchronously pushes a SetWritingToLogFile request,
// coalescing redundant in-flight pushes (spec.md §4.6, §8).
func (c *Client) SetWriteToLogFile(enable bool) { c.coord.PushWriteToLogFile(enable) }

// mapCoordinatorErr classifies a coordinator-internal sentinel error onto
// this package's structured *Error taxonomy (spec.md §7). Kept here
// rather than in internal/coordinator to avoid that package importing the
// root package.
func mapCoordinatorErr(op string, err error) error {
	switch {
	case errors.Is(err, coordinator.ErrInvalidStateSentinel):
		return WrapError(op, ErrCodeInvalidState, err)
	case errors.Is(err, coordinator.ErrCancellationSentinel):
		return WrapError(op, ErrCodeCancellationRequested, err)
	case errors.Is(err, coordinator.ErrTransportSentinel):
		return WrapError(op, ErrCodeTransportFailure, err)
	case errors.Is(err, coordinator.ErrRingUnavailableSentinel):
		return WrapError(op, ErrCodeRingUnavailable, err)
	case errors.Is(err, coordinator.ErrNoFreeBlockDuringHandshake):
		return WrapError(op, ErrCodeNoFreeBlockDuringHandshake, err)
	case errors.Is(err, coordinator.ErrRingFullSentinel):
		return WrapError(op, ErrCodeRingFull, err)
	default:
		return WrapError(op, ErrCodeServiceUnreachable, err)
	}
}

// timedControlChannel wraps a coordinator.ControlChannel, observing each
// exchange's wall-clock duration into the ControlChannelCall histogram.
type timedControlChannel struct {
	inner   coordinator.ControlChannel
	metrics *Metrics
}

func (t *timedControlChannel) observe(fn func() error) error {
	start := time.Now()
	err := fn()
	t.metrics.ControlChannelCall.Observe(time.Since(start).Seconds())
	return err
}

func (t *timedControlChannel) RegisterLogSource(pid int) error {
	return t.observe(func() error { return t.inner.RegisterLogSource(pid) })
}

func (t *timedControlChannel) UnregisterLogSource(pid int) error {
	return t.observe(func() error { return t.inner.UnregisterLogSource(pid) })
}

func (t *timedControlChannel) QueryProcessID() (int, error) {
	var pid int
	err := t.observe(func() error {
		var innerErr error
		pid, innerErr = t.inner.QueryProcessID()
		return innerErr
	})
	return pid, err
}

func (t *timedControlChannel) SetWritingToLogFile(pid int, enable bool) error {
	return t.observe(func() error { return t.inner.SetWritingToLogFile(pid, enable) })
}

// metricsObserver adapts coordinator.Observer onto the Prometheus
// collectors in Metrics.
type metricsObserver struct {
	metrics *Metrics
}

func (o *metricsObserver) RingFull()          { o.metrics.RingFullEvents.Inc() }
func (o *metricsObserver) PeakBufferFlushed() { o.metrics.PeakBufferFlushes.Inc() }
func (o *metricsObserver) Reconnected()       { o.metrics.ReconnectCount.Inc() }
