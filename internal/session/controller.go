// Package session implements the push-to-talk recording state machine.
//
// A session runs from press to release. While it is active the Controller
// drives three goroutines against the capture stream: a frame drain feeding
// the Recorder, a 100ms voice-activity tick, and a 1000ms chunk-boundary
// ticker that finalizes the current chunk and opens the next one. Finalized
// chunks that pass the dispatch policy are emitted on the Events channel for
// the pipeline to transcribe.
//
// The dispatch policy keeps hallucination-prone audio away from the
// transcription service: a chunk is dispatched when it contained sustained
// speech, or when speech occurred earlier in the session and ended within the
// grace period (trailing syllables straddle chunk boundaries). Everything
// else is dropped without any external call. Sessions shorter than the
// minimum duration are treated as accidental presses and discarded wholesale.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxlate/voxlate/internal/notify"
	"github.com/voxlate/voxlate/internal/observe"
	"github.com/voxlate/voxlate/internal/vad"
	"github.com/voxlate/voxlate/pkg/audio"
)

// Tunable defaults. Restart cadence balances responsiveness against
// transcription quality.
const (
	DefaultChunkInterval      = 1000 * time.Millisecond
	DefaultGracePeriod        = 1500 * time.Millisecond
	DefaultMinSessionDuration = 800 * time.Millisecond
	DefaultFlushDelay         = 100 * time.Millisecond

	// eventBuffer bounds the Events channel. The pipeline consumes promptly;
	// a full buffer means it has stalled and further chunks are dropped.
	eventBuffer = 16

	// abortedHistory caps how many aborted session IDs are remembered for
	// pipeline liveness checks.
	abortedHistory = 8
)

// User-visible status strings pushed to the notification sink.
const (
	StatusRecording         = "recording"
	StatusTooShort          = "too short"
	StatusBackgroundIgnored = "background audio ignored"
	StatusStopped           = "stopped"
)

// ErrSessionActive is returned by Start when a session is already running.
var ErrSessionActive = fmt.Errorf("session: a session is already active")

// Config holds the session tunables. Zero durations fall back to defaults.
type Config struct {
	// TickInterval is the VAD sampling cadence.
	TickInterval time.Duration

	// ChunkInterval is the restart cadence slicing the stream into chunks.
	ChunkInterval time.Duration

	// GracePeriod is how long after the last sustained speech a speechless
	// chunk is still dispatched.
	GracePeriod time.Duration

	// MinSessionDuration is the accidental-press cutoff; shorter sessions
	// are discarded without any external call.
	MinSessionDuration time.Duration

	// FlushDelay is how long a finalizing boundary keeps accepting frames so
	// in-flight capture data lands in the closing chunk.
	FlushDelay time.Duration

	// Capture is the audio format requested from the platform.
	Capture audio.CaptureConfig
}

func (c *Config) applyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = vad.DefaultTickInterval
	}
	if c.ChunkInterval <= 0 {
		c.ChunkInterval = DefaultChunkInterval
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.MinSessionDuration <= 0 {
		c.MinSessionDuration = DefaultMinSessionDuration
	}
	if c.FlushDelay <= 0 {
		c.FlushDelay = DefaultFlushDelay
	}
}

// Controller owns the push-to-talk session lifecycle. Only one session can be
// active at a time. All exported methods are safe for concurrent use.
type Controller struct {
	cfg      Config
	platform audio.Platform
	router   audio.OutputRouter
	detector *vad.Detector
	sink     notify.Sink
	events   chan Chunk
	recorder *Recorder
	metrics  *observe.Metrics
	now      func() time.Time

	// lifecycleMu serialises Start/Stop/Abort end to end, including the wait
	// for session goroutines. mu guards the fields below and is never held
	// across a blocking call.
	lifecycleMu sync.Mutex

	mu           sync.Mutex
	active       bool
	cancel       context.CancelFunc
	stream       audio.CaptureStream
	sessionID    string
	sessionStart time.Time
	anySpeech    bool
	chunkSpeech  bool
	lastSpeech   time.Time
	aborted      []string

	wg sync.WaitGroup
}

// NewController creates a Controller. All collaborators are required except
// sink, which may be nil to disable status notifications.
func NewController(cfg Config, platform audio.Platform, router audio.OutputRouter, detector *vad.Detector, sink notify.Sink) *Controller {
	cfg.applyDefaults()
	if sink == nil {
		sink = &notify.LogSink{}
	}
	return &Controller{
		cfg:      cfg,
		platform: platform,
		router:   router,
		detector: detector,
		sink:     sink,
		events:   make(chan Chunk, eventBuffer),
		recorder: NewRecorder(),
		metrics:  observe.DefaultMetrics(),
		now:      time.Now,
	}
}

// Events returns the channel of dispatched chunks. The channel stays open
// for the controller's lifetime and is shared across sessions.
func (c *Controller) Events() <-chan Chunk { return c.events }

// IsActive reports whether a session is currently recording.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Alive reports whether results for the given session should still be
// surfaced. Sessions torn down by Abort are dead; a gracefully stopped
// session stays alive so its final chunks reach playback.
func (c *Controller) Alive(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.aborted {
		if id == sessionID {
			return false
		}
	}
	return true
}

// UpdateTuning replaces the timing knobs for subsequent sessions. Returns
// ErrSessionActive while a session is recording; callers retry after the
// session ends.
func (c *Controller) UpdateTuning(cfg Config) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return ErrSessionActive
	}
	cfg.applyDefaults()
	c.cfg = cfg
	return nil
}

// Start begins a new push-to-talk session: opens the capture stream, resets
// the detector and per-session flags, pauses live passthrough, opens the
// first chunk, and launches the tick and boundary loops.
//
// Returns ErrSessionActive if a session is already running.
func (c *Controller) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return ErrSessionActive
	}

	stream, err := c.platform.OpenCapture(ctx, c.cfg.Capture)
	if err != nil {
		return fmt.Errorf("session: open capture: %w", err)
	}

	if err := c.router.StopLivePassthrough(); err != nil {
		// Passthrough still running is annoying, not fatal.
		slog.Warn("session: stop live passthrough failed", "error", err)
	}

	sessionID := uuid.NewString()
	now := c.now()

	c.detector.Reset()
	c.recorder.Open(sessionID, c.cfg.Capture.SampleRate, c.cfg.Capture.Channels)

	sessionCtx, cancel := context.WithCancel(context.Background())

	c.active = true
	c.cancel = cancel
	c.stream = stream
	c.sessionID = sessionID
	c.sessionStart = now
	c.anySpeech = false
	c.chunkSpeech = false
	c.lastSpeech = time.Time{}

	c.wg.Add(3)
	go c.frameLoop(sessionCtx)
	go c.tickLoop(sessionCtx)
	go c.boundaryLoop(sessionCtx)

	c.metrics.ActiveSessions.Add(ctx, 1)
	slog.Info("session started", "session_id", sessionID)
	c.sink.OnChunkStatus(StatusRecording)
	return nil
}

// Stop gracefully ends the active session. The tick and boundary loops are
// provably stopped before the final chunk is considered, so no chunk can be
// emitted after Stop returns. Calling Stop with no active session is a no-op.
func (c *Controller) Stop() error {
	return c.teardown(false)
}

// Abort ends the active session and marks it dead so any in-flight pipeline
// results for it are discarded instead of surfaced. Used when translation
// mode is switched off mid-session. No-op when idle.
func (c *Controller) Abort() error {
	return c.teardown(true)
}

func (c *Controller) teardown(abort bool) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	c.active = false
	cancel := c.cancel
	stream := c.stream
	sessionID := c.sessionID
	start := c.sessionStart
	anySpeech := c.anySpeech
	chunkSpeech := c.chunkSpeech
	lastSpeech := c.lastSpeech
	c.cancel = nil
	c.stream = nil
	if abort {
		c.aborted = append(c.aborted, sessionID)
		if len(c.aborted) > abortedHistory {
			c.aborted = c.aborted[len(c.aborted)-abortedHistory:]
		}
	}
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	c.metrics.ActiveSessions.Add(context.Background(), -1)

	duration := c.now().Sub(start)
	switch {
	case abort:
		c.recorder.Finalize(false)
		slog.Info("session aborted", "session_id", sessionID, "duration", duration)
	case duration < c.cfg.MinSessionDuration:
		// Accidental press: discard everything without an external call.
		c.recorder.Finalize(false)
		slog.Info("session discarded: too short", "session_id", sessionID, "duration", duration)
		c.sink.OnChunkStatus(StatusTooShort)
	default:
		if chunk, ok := c.recorder.Finalize(chunkSpeech); ok {
			c.dispatch(chunk, anySpeech, lastSpeech)
		}
		slog.Info("session stopped", "session_id", sessionID, "duration", duration)
		c.sink.OnChunkStatus(StatusStopped)
	}

	if err := stream.Close(); err != nil {
		slog.Warn("session: close capture stream", "session_id", sessionID, "error", err)
	}
	if err := c.router.RestartLivePassthrough(); err != nil {
		slog.Warn("session: restart live passthrough failed", "error", err)
	}
	return nil
}

// frameLoop drains capture frames into the recorder. When the device drops
// mid-session it waits for the boundary loop's defensive restart instead of
// exiting.
func (c *Controller) frameLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		stream := c.currentStream()
		if stream == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case f, ok := <-stream.Frames():
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-time.After(50 * time.Millisecond):
					continue
				}
			}
			c.recorder.Append(f.Data)
		}
	}
}

// tickLoop runs the voice activity detector against the analysis tap.
func (c *Controller) tickLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick samples the tap once. A missing stream or tap reads as silence.
func (c *Controller) tick() {
	start := time.Now()
	defer func() {
		c.metrics.VADTickDuration.Record(context.Background(), time.Since(start).Seconds())
	}()

	stream := c.currentStream()
	var tap []float32
	if stream != nil {
		tap = stream.Tap()
	}
	dec := c.detector.Process(tap)
	if !dec.Sustained {
		return
	}
	c.mu.Lock()
	if c.active {
		c.chunkSpeech = true
		c.anySpeech = true
		c.lastSpeech = c.now()
	}
	c.mu.Unlock()
}

// boundaryLoop closes and reopens chunks on the restart cadence.
func (c *Controller) boundaryLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.ChunkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.chunkBoundary(ctx)
		}
	}
}

// chunkBoundary finalizes the current chunk and opens the next one. While no
// speech has occurred this session the buffered audio is rewound in place:
// empty audio must never reach transcription, and silence must not
// accumulate.
func (c *Controller) chunkBoundary(ctx context.Context) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	anySpeech := c.anySpeech
	chunkSpeech := c.chunkSpeech
	lastSpeech := c.lastSpeech
	sessionID := c.sessionID
	c.chunkSpeech = false
	c.mu.Unlock()

	if !anySpeech {
		c.recorder.Rewind()
		c.maybeRestartCapture(ctx, sessionID)
		return
	}

	// Let in-flight capture data land in the closing chunk.
	select {
	case <-ctx.Done():
		return
	case <-time.After(c.cfg.FlushDelay):
	}

	chunk, ok := c.recorder.Finalize(chunkSpeech)
	c.recorder.Open(sessionID, c.cfg.Capture.SampleRate, c.cfg.Capture.Channels)
	if ok {
		c.dispatch(chunk, anySpeech, lastSpeech)
	}

	c.maybeRestartCapture(ctx, sessionID)
}

// maybeRestartCapture reopens the capture stream when the device went
// inactive while the session still runs.
func (c *Controller) maybeRestartCapture(ctx context.Context, sessionID string) {
	stream := c.currentStream()
	if stream == nil || stream.Active() {
		return
	}

	slog.Warn("session: capture device inactive, restarting", "session_id", sessionID)
	newStream, err := c.platform.OpenCapture(ctx, c.cfg.Capture)
	if err != nil {
		slog.Error("session: defensive capture restart failed", "session_id", sessionID, "error", err)
		return
	}

	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		newStream.Close()
		return
	}
	old := c.stream
	c.stream = newStream
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

// dispatch applies the chunk dispatch policy and emits keepers on Events.
func (c *Controller) dispatch(chunk Chunk, anySpeech bool, lastSpeech time.Time) {
	keep := chunk.HadSpeech
	if !keep && anySpeech && !lastSpeech.IsZero() {
		keep = c.now().Sub(lastSpeech) <= c.cfg.GracePeriod
	}
	if !keep {
		slog.Debug("chunk dropped by dispatch policy",
			"chunk_id", chunk.ID,
			"session_id", chunk.SessionID,
			"had_speech", chunk.HadSpeech,
		)
		c.metrics.RecordChunkDropped(context.Background(), "dispatch_policy")
		c.sink.OnChunkStatus(StatusBackgroundIgnored)
		return
	}

	select {
	case c.events <- chunk:
		c.metrics.ChunksDispatched.Add(context.Background(), 1)
	default:
		c.metrics.RecordChunkDropped(context.Background(), "pipeline_stalled")
		slog.Warn("chunk dropped: pipeline stalled", "chunk_id", chunk.ID, "session_id", chunk.SessionID)
	}
}

func (c *Controller) currentStream() audio.CaptureStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream
}
