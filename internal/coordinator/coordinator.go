// Package coordinator implements the connection state machine (C5): it
// drives the handshake over the control channel, opens the shared-memory
// ring, replays metadata, routes frames between the ring and the peak
// buffer, and monitors/reconnects the service connection.
package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/griffinplus/logsink/internal/logging"
	"github.com/griffinplus/logsink/internal/peak"
	"github.com/griffinplus/logsink/internal/ring"
	"github.com/griffinplus/logsink/internal/wire"
)

const losslessRetryInterval = 20 * time.Millisecond

// Config carries the coordinator's tunables; it mirrors the host-facing
// properties of the external-interface adapter (spec.md §4.6, §6).
type Config struct {
	Prefix                    string
	ApplicationName           string
	AutoReconnectInterval     time.Duration
	ConnectivityCheckInterval time.Duration
	PeakBufferCapacity        int
	LosslessMode              bool
	WriteToLogFile            bool
}

type levelEntry struct {
	id   int32
	name string
}

type writerEntry struct {
	id   int32
	name string
}

// Coordinator implements the C5 state machine described in spec.md §4.5.
type Coordinator struct {
	mu sync.Mutex

	cfg  Config
	pid  int
	ctrl ControlChannel

	openRing    RingOpener
	openProcess ProcessOpener

	ringConn      Ring
	serviceHandle ProcessHandle
	servicePid    int

	state State

	peakBuf *peak.Buffer

	levels       []levelEntry
	writers      []writerEntry
	lastSentLvl  int32
	lastSentWrtr int32

	lostMessageCount atomic.Uint64
	overflowMark     uint64

	persistence *persistencePusher

	triggerCh chan struct{}
	monitorWg sync.WaitGroup
	cancelMon context.CancelFunc

	obs Observer

	log *logging.Logger
}

// Observer receives best-effort notifications of events a host might want
// to surface as metrics, without this package importing the root metrics
// type (which would create an import cycle).
type Observer interface {
	RingFull()
	PeakBufferFlushed()
	Reconnected()
}

// SetObserver installs a metrics/diagnostics observer. Safe to call once
// before the coordinator starts handling traffic.
func (c *Coordinator) SetObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.obs = o
}

// PeakBufferLen reports the current number of entries queued in the peak
// buffer (for a PeakBufferDepth gauge).
func (c *Coordinator) PeakBufferLen() int {
	return c.peakBuf.Len()
}

// New constructs a Coordinator. openRing and openProcess are injected so
// tests can substitute fakes for the real shared-memory region and pid
// liveness probe.
func New(cfg Config, pid int, ctrl ControlChannel, openRing RingOpener, openProcess ProcessOpener) *Coordinator {
	c := &Coordinator{
		cfg:          cfg,
		pid:          pid,
		ctrl:         ctrl,
		openRing:     openRing,
		openProcess:  openProcess,
		state:        Uninitialized,
		peakBuf:      peak.New(cfg.PeakBufferCapacity),
		lastSentLvl:  -1,
		lastSentWrtr: -1,
		triggerCh:    make(chan struct{}, 1),
		log:          logging.Default().With("component", "coordinator"),
	}
	c.persistence = newPersistencePusher(c.log)
	return c
}

// State returns the current state under the coordinator mutex.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LostMessageCount is the monotonic, host-visible count of dropped
// messages (SPEC_FULL.md supplement #3).
func (c *Coordinator) LostMessageCount() uint64 {
	return c.lostMessageCount.Load()
}

// SetPeakBufferCapacity adjusts admission capacity for message frames.
func (c *Coordinator) SetPeakBufferCapacity(capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.PeakBufferCapacity = capacity
	c.peakBuf.SetCapacity(capacity)
}

// SetLosslessMode toggles the admission policy used by Submit.
func (c *Coordinator) SetLosslessMode(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.LosslessMode = enabled
}

// SetAutoReconnectInterval adjusts the background reconnect cadence.
func (c *Coordinator) SetAutoReconnectInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.AutoReconnectInterval = d
}

// IsEstablished reports whether the coordinator currently holds an open,
// handshaken connection to the service.
func (c *Coordinator) IsEstablished() bool {
	return c.State() == Operational
}

// --- Handshake / Initialize -------------------------------------------

// Initialize runs the handshake sequence (spec.md §4.5). It is idempotent
// when already Operational, and fails with ErrCodeInvalidState when called
// re-entrantly while a handshake or shutdown is in progress.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Operational:
		c.mu.Unlock()
		return nil
	case Handshaking, ShuttingDown:
		c.mu.Unlock()
		return errInvalidState("Initialize", "initialize already in progress")
	}
	wasDegraded := c.state == Degraded
	c.state = Handshaking
	sessionID := uuid.New().String()
	log := c.log.WithSession(sessionID)
	start := time.Now()

	err := c.handshakeLocked(ctx, log)
	if err != nil {
		c.state = Degraded
		c.mu.Unlock()
		log.Warn("handshake failed, entering degraded state", "error", err)
		c.triggerReconnect()
		c.ensureMonitorStarted()
		return err
	}
	c.state = Operational
	obs := c.obs
	c.mu.Unlock()
	log.Info("handshake complete, operational", "duration", time.Since(start))
	if obs != nil && wasDegraded {
		obs.Reconnected()
	}
	c.ensureMonitorStarted()
	return nil
}

func (c *Coordinator) handshakeLocked(ctx context.Context, log *logging.Logger) error {
	if err := ctx.Err(); err != nil {
		return errCancellation("Initialize", err)
	}

	// Every handshake attempt — first connection or reconnect — talks to a
	// logically fresh ring/session, so the full level/writer registries are
	// replayed from scratch regardless of what a previous session sent.
	c.lastSentLvl = -1
	c.lastSentWrtr = -1

	// Step 1: register this producer's pid.
	if err := c.ctrl.RegisterLogSource(c.pid); err != nil {
		return wrapTransport("handshake:register", err)
	}

	// Step 2: query service pid and open a liveness handle.
	svcPid, err := c.ctrl.QueryProcessID()
	if err != nil {
		return wrapTransport("handshake:query_pid", err)
	}
	c.servicePid = svcPid
	c.serviceHandle = c.openProcess(svcPid)
	log.Info("service process discovered", "service_pid", svcPid)

	// Step 3: push persistence setting, non-fatal.
	if err := c.ctrl.SetWritingToLogFile(c.pid, c.cfg.WriteToLogFile); err != nil {
		log.Warn("initial write_to_log_file push failed, continuing", "error", err)
	}

	if err := ctx.Err(); err != nil {
		return errCancellation("Initialize", err)
	}

	// Step 4: open the ring.
	r, err := c.openRing(c.cfg.Prefix, c.pid)
	if err != nil {
		return wrapRingUnavailable("handshake:open_ring", err)
	}
	c.ringConn = r

	// Step 5: StartMarker.
	if err := c.commitFrameLocked(wire.NewStartMarker()); err != nil {
		return errNoFreeBlockDuringHandshake("handshake:start_marker", err)
	}

	// Step 6: SetApplicationName.
	if err := c.commitFrameLocked(wire.SetApplicationName{Name: c.cfg.ApplicationName}); err != nil {
		return errNoFreeBlockDuringHandshake("handshake:application_name", err)
	}

	// Step 7: replay log levels in ascending id order.
	for _, lvl := range c.levels {
		if lvl.id != c.lastSentLvl+1 {
			return errNoFreeBlockDuringHandshake("handshake:level_replay",
				errInvalidState("handshake:level_replay", "non-contiguous level id during replay"))
		}
		if err := c.commitFrameLocked(wire.AddLogLevelName{ID: lvl.id, Name: lvl.name}); err != nil {
			return errNoFreeBlockDuringHandshake("handshake:level_replay", err)
		}
		c.lastSentLvl = lvl.id
	}

	// Step 8: replay log writers in ascending id order.
	for _, w := range c.writers {
		if w.id != c.lastSentWrtr+1 {
			return errNoFreeBlockDuringHandshake("handshake:writer_replay",
				errInvalidState("handshake:writer_replay", "non-contiguous writer id during replay"))
		}
		if err := c.commitFrameLocked(wire.AddSourceName{ID: w.id, Name: w.name}); err != nil {
			return errNoFreeBlockDuringHandshake("handshake:writer_replay", err)
		}
		c.lastSentWrtr = w.id
	}

	return nil
}

// commitFrameLocked encodes and commits a single-block frame directly to
// the ring. Used only during handshake, where a full ring is fatal for the
// current attempt (spec.md §4.5).
func (c *Coordinator) commitFrameLocked(f wire.Frame) error {
	payload, err := wire.Encode(f)
	if err != nil {
		return err
	}
	h, ok, err := c.ringConn.BeginWriting()
	if err != nil {
		return err
	}
	if !ok {
		return errRingFull()
	}
	copy(h.Payload(), payload[:])
	return c.ringConn.EndWriting(h, len(payload), 0)
}

// --- Metadata notifications --------------------------------------------

// RegisterLogLevel records a newly known log level id/name. If Operational,
// the AddLogLevelName frame is emitted immediately (interleaved at the
// point it occurs, per spec.md §4.5); otherwise it is queued for replay on
// the next handshake. Ids must be registered in strictly ascending order
// starting at 0 (spec.md §4.5 steps 7-8's replay invariant); a gap is
// rejected here rather than accepted and left to fail a later handshake's
// replay assertion.
func (c *Coordinator) RegisterLogLevel(id int32, declaredName string) {
	name := MapLevelName(id, declaredName)
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != int32(len(c.levels)) {
		c.log.Error("rejecting non-contiguous log level registration", "id", id, "expected_id", len(c.levels))
		return
	}
	c.levels = append(c.levels, levelEntry{id: id, name: name})
	if c.state != Operational {
		return
	}
	if c.submitLocked(peak.KindNotification, []wire.Frame{wire.AddLogLevelName{ID: id, Name: name}}) {
		c.lastSentLvl = id
	}
}

// RegisterLogWriter records a newly known log writer (source) id/name. Ids
// must be registered in strictly ascending order starting at 0, the same
// invariant RegisterLogLevel enforces.
func (c *Coordinator) RegisterLogWriter(id int32, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != int32(len(c.writers)) {
		c.log.Error("rejecting non-contiguous log writer registration", "id", id, "expected_id", len(c.writers))
		return
	}
	c.writers = append(c.writers, writerEntry{id: id, name: name})
	if c.state != Operational {
		return
	}
	if c.submitLocked(peak.KindNotification, []wire.Frame{wire.AddSourceName{ID: id, Name: name}}) {
		c.lastSentWrtr = id
	}
}

// --- Message / command submission --------------------------------------

// SubmitMessage enqueues a (possibly multi-block) log message, returning
// true if admitted (to the ring or the peak buffer) and false if dropped.
func (c *Coordinator) SubmitMessage(frames []wire.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitLocked(peak.KindMessage, frames)
}

// SubmitCommand enqueues a ClearLogViewer/SaveSnapshot frame. Commands are
// never dropped for ring-full reasons; they are always admitted to the
// peak buffer like metadata (SPEC_FULL.md Open Question resolution).
func (c *Coordinator) SubmitCommand(f wire.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitLocked(peak.KindCommand, []wire.Frame{f})
}

func (c *Coordinator) nextOverflowCountLocked() int32 {
	cur := c.lostMessageCount.Load()
	delta := cur - c.overflowMark
	c.overflowMark = cur
	return int32(delta)
}

// submitLocked implements the admission policy of spec.md §4.4/§4.5: drain
// the peak buffer first, then try the ring; block-and-retry in lossless
// mode, otherwise spill to the peak buffer or drop.
func (c *Coordinator) submitLocked(kind peak.Kind, frames []wire.Frame) bool {
	if c.state == Operational {
		c.drainPeakLocked()
	}

	for c.state == Operational {
		overflow := c.nextOverflowCountLocked()
		handles, ok := c.reserveSequenceLocked(len(frames))
		if ok {
			c.commitSequenceLocked(handles, frames, overflow)
			return true
		}
		// Ring full: undo the overflow-mark advance, it wasn't consumed.
		c.overflowMark -= uint64(overflow)
		if c.obs != nil {
			c.obs.RingFull()
		}

		c.probeLivenessLocked()
		if c.state != Operational {
			break
		}
		if c.cfg.LosslessMode {
			c.mu.Unlock()
			time.Sleep(losslessRetryInterval)
			c.mu.Lock()
			if c.state == Operational {
				c.drainPeakLocked()
			}
			continue
		}
		break
	}

	overflow := c.nextOverflowCountLocked()
	blocks, err := encodeFrames(frames)
	if err != nil {
		c.log.Error("failed to encode frame for peak buffer", "error", err)
		c.lostMessageCount.Add(1)
		return false
	}
	if c.peakBuf.TryPush(peak.Entry{Kind: kind, Blocks: blocks, OverflowCount: overflow}) {
		return true
	}
	c.overflowMark -= uint64(overflow)
	c.lostMessageCount.Add(1)
	return false
}

func encodeFrames(frames []wire.Frame) ([][]byte, error) {
	blocks := make([][]byte, len(frames))
	for i, f := range frames {
		payload, err := wire.Encode(f)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, len(payload))
		copy(buf, payload[:])
		blocks[i] = buf
	}
	return blocks, nil
}

// reserveSequenceLocked reserves n contiguous blocks from the ring,
// aborting everything reserved so far if any reservation fails midway.
func (c *Coordinator) reserveSequenceLocked(n int) ([]ring.Reserved, bool) {
	handles := make([]ring.Reserved, 0, n)
	for i := 0; i < n; i++ {
		h, ok, err := c.ringConn.BeginWriting()
		if err != nil || !ok {
			for _, held := range handles {
				c.ringConn.AbortWriting(held)
			}
			return nil, false
		}
		handles = append(handles, h)
	}
	return handles, true
}

func (c *Coordinator) commitSequenceLocked(handles []ring.Reserved, frames []wire.Frame, overflow int32) {
	sizes := make([]int, len(handles))
	for i, h := range handles {
		payload, err := wire.Encode(frames[i])
		if err != nil {
			// Programming error: frames were already validated at the
			// admission boundary. Abort the whole sequence defensively.
			for _, held := range handles {
				c.ringConn.AbortWriting(held)
			}
			return
		}
		copy(h.Payload(), payload[:])
		sizes[i] = len(payload)
	}
	if len(handles) == 1 {
		_ = c.ringConn.EndWriting(handles[0], sizes[0], overflow)
		return
	}
	_ = c.ringConn.EndWritingSequence(handles, sizes, overflow)
}

// drainPeakLocked flushes the peak buffer into the ring in FIFO order,
// stopping at the first entry that doesn't fit (spec.md §4.4).
func (c *Coordinator) drainPeakLocked() {
	for {
		entry, ok := c.peakBuf.Peek()
		if !ok {
			return
		}
		handles, ok := c.reserveSequenceLocked(len(entry.Blocks))
		if !ok {
			return
		}
		sizes := make([]int, len(handles))
		for i, h := range handles {
			copy(h.Payload(), entry.Blocks[i])
			sizes[i] = len(entry.Blocks[i])
		}
		if len(handles) == 1 {
			_ = c.ringConn.EndWriting(handles[0], sizes[0], entry.OverflowCount)
		} else {
			_ = c.ringConn.EndWritingSequence(handles, sizes, entry.OverflowCount)
		}
		c.peakBuf.Pop()
		if c.obs != nil {
			c.obs.PeakBufferFlushed()
		}
	}
}

// --- Liveness and reconnect ---------------------------------------------

func (c *Coordinator) probeLivenessLocked() {
	if c.serviceHandle == nil {
		return
	}
	if c.serviceHandle.IsAlive() {
		return
	}
	if c.state == Operational {
		c.log.Warn("service process terminated, entering degraded state")
		c.state = Degraded
		c.triggerReconnectLocked()
	}
}

func (c *Coordinator) triggerReconnect() {
	c.mu.Lock()
	c.triggerReconnectLocked()
	c.mu.Unlock()
}

func (c *Coordinator) triggerReconnectLocked() {
	select {
	case c.triggerCh <- struct{}{}:
	default:
	}
}

func (c *Coordinator) ensureMonitorStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelMon != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelMon = cancel
	c.monitorWg.Add(1)
	go c.monitorLoop(ctx)
}

// monitorLoop heartbeats the service handle while Operational and retries
// the handshake at AutoReconnectInterval while Degraded (spec.md §4.5,
// §5).
func (c *Coordinator) monitorLoop(ctx context.Context) {
	defer c.monitorWg.Done()
	for {
		interval := c.nextMonitorInterval()
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-c.triggerCh:
			timer.Stop()
		case <-timer.C:
		}
		c.monitorTick(ctx)
	}
}

func (c *Coordinator) nextMonitorInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Operational:
		return c.cfg.ConnectivityCheckInterval
	case Degraded:
		return c.cfg.AutoReconnectInterval
	default:
		return c.cfg.ConnectivityCheckInterval
	}
}

func (c *Coordinator) monitorTick(ctx context.Context) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case Operational:
		c.mu.Lock()
		c.probeLivenessLocked()
		c.mu.Unlock()
	case Degraded:
		if err := c.Initialize(ctx); err != nil {
			c.log.Debug("reconnect attempt failed, will retry", "error", err)
		}
	}
}

// --- Shutdown ------------------------------------------------------------

// Shutdown cancels the monitor, best-effort unregisters, closes the ring
// and service handle, clears the peak buffer, and resets last_sent_*
// trackers (spec.md §4.5). Idempotent.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Shutdown, Uninitialized:
		c.state = Shutdown
		c.mu.Unlock()
		return nil
	case ShuttingDown:
		c.mu.Unlock()
		return errInvalidState("Shutdown", "shutdown already in progress")
	}
	c.state = ShuttingDown
	c.mu.Unlock()

	if c.cancelMon != nil {
		c.cancelMon()
	}
	c.monitorWg.Wait()

	_ = c.ctrl.UnregisterLogSource(c.pid)

	c.mu.Lock()
	if c.ringConn != nil {
		_ = c.ringConn.Close()
		c.ringConn = nil
	}
	if c.serviceHandle != nil {
		_ = c.serviceHandle.Close()
		c.serviceHandle = nil
	}
	c.peakBuf.Clear()
	c.lastSentLvl = -1
	c.lastSentWrtr = -1
	c.levels = nil
	c.writers = nil
	c.state = Shutdown
	c.mu.Unlock()
	return nil
}

// PushWriteToLogFile coalesces and asynchronously pushes a
// SetWritingToLogFile request (SPEC_FULL.md supplement #1).
func (c *Coordinator) PushWriteToLogFile(enable bool) {
	c.mu.Lock()
	c.cfg.WriteToLogFile = enable
	pid := c.pid
	c.mu.Unlock()
	c.persistence.Request(enable, func(v bool) error {
		return c.ctrl.SetWritingToLogFile(pid, v)
	})
}
