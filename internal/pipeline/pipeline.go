// Package pipeline drives finalized chunks through transcription, language
// gating, translation, and on into the TTS queue.
//
// Each chunk is processed by its own goroutine; ordering is restored later by
// the queue's FIFO playback, so slow transcription of one chunk never blocks
// the next. Every stage re-checks that the originating session is still
// alive and discards its result when it is not: in-flight provider calls for
// an aborted session complete harmlessly but produce nothing.
//
// Stage failures are absorbed here. A transcription or translation error
// abandons the affected chunk with a user-visible status; it never crashes
// the session or stops later chunks.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/voxlate/voxlate/internal/langgate"
	"github.com/voxlate/voxlate/internal/notify"
	"github.com/voxlate/voxlate/internal/observe"
	"github.com/voxlate/voxlate/internal/session"
	"github.com/voxlate/voxlate/internal/ttsqueue"
	"github.com/voxlate/voxlate/pkg/provider/stt"
	"github.com/voxlate/voxlate/pkg/provider/translate"
	"github.com/voxlate/voxlate/pkg/provider/tts"
)

// User-visible status strings pushed to the notification sink.
const (
	StatusTranscribing      = "transcribing"
	StatusTranslating       = "translating"
	StatusSynthesizing      = "synthesizing"
	StatusNoSpeech          = "no speech recognized"
	StatusBackgroundIgnored = "background audio ignored"
	StatusSTTFailed         = "transcription unavailable"
	StatusTranslateFailed   = "translation unavailable"
)

// Config holds the pipeline's language and voice settings.
type Config struct {
	// ExpectedLanguage is what the speaker is expected to talk in; chunks
	// detected as another language are dropped as background audio.
	ExpectedLanguage string

	// TargetLanguage is what translations are rendered into.
	TargetLanguage string

	// Voice and TTSModel select the synthesis output.
	Voice    tts.VoiceProfile
	TTSModel string
}

// Liveness reports whether results for a session should still be surfaced.
// The session controller's Alive method satisfies it.
type Liveness func(sessionID string) bool

// Pipeline consumes chunk events and feeds the TTS queue.
type Pipeline struct {
	cfgMu      sync.RWMutex
	cfg        Config
	stt        stt.Provider
	translator translate.Provider
	queue      *ttsqueue.Processor
	sink       notify.Sink
	alive      Liveness
	metrics    *observe.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a Pipeline. alive may be nil, in which case every session is
// considered live; sink may be nil to disable status notifications.
func New(cfg Config, sttp stt.Provider, translator translate.Provider, queue *ttsqueue.Processor, sink notify.Sink, alive Liveness) *Pipeline {
	if sink == nil {
		sink = &notify.LogSink{}
	}
	if alive == nil {
		alive = func(string) bool { return true }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		cfg:        cfg,
		stt:        sttp,
		translator: translator,
		queue:      queue,
		sink:       sink,
		alive:      alive,
		metrics:    observe.DefaultMetrics(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins consuming chunk events. It returns immediately; processing
// happens on background goroutines until events is closed or Stop is called.
func (p *Pipeline) Start(events <-chan session.Chunk) {
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-p.ctx.Done():
					return
				case chunk, ok := <-events:
					if !ok {
						return
					}
					p.wg.Add(1)
					go func() {
						defer p.wg.Done()
						p.process(chunk)
					}()
				}
			}
		}()
	})
}

// UpdateConfig replaces the language and voice settings. Chunks already in
// flight keep the settings they started with.
func (p *Pipeline) UpdateConfig(cfg Config) {
	p.cfgMu.Lock()
	p.cfg = cfg
	p.cfgMu.Unlock()
}

func (p *Pipeline) config() Config {
	p.cfgMu.RLock()
	defer p.cfgMu.RUnlock()
	return p.cfg
}

// Stop cancels in-flight stage calls and waits for all chunk goroutines to
// finish. Idempotent.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
	})
}

// process drives one chunk through the stages.
func (p *Pipeline) process(chunk session.Chunk) {
	cfg := p.config()
	ctx, span := observe.StartSpan(p.ctx, "pipeline.process")
	defer span.End()
	log := observe.Logger(ctx).With("chunk_id", chunk.ID, "session_id", chunk.SessionID)

	if !p.alive(chunk.SessionID) {
		return
	}

	// Transcribe.
	p.sink.OnChunkStatus(StatusTranscribing)
	sttStart := time.Now()
	res, err := p.stt.Transcribe(ctx, chunk.Data, stt.Config{
		SampleRate:       chunk.SampleRate,
		Channels:         chunk.Channels,
		ExpectedLanguage: cfg.ExpectedLanguage,
	})
	p.metrics.STTDuration.Record(ctx, time.Since(sttStart).Seconds())
	if err != nil {
		log.Warn("transcription failed, chunk abandoned", "error", err)
		p.metrics.RecordProviderError(ctx, "stt", "transcribe")
		p.sink.OnChunkStatus(StatusSTTFailed)
		return
	}
	if res.Skipped || strings.TrimSpace(res.Text) == "" {
		// Not an error: the provider heard nothing worth keeping.
		log.Debug("chunk produced no text", "skipped", res.Skipped, "reason", res.Reason)
		p.metrics.RecordChunkDropped(ctx, "empty_transcription")
		p.sink.OnChunkStatus(StatusNoSpeech)
		return
	}

	if !p.alive(chunk.SessionID) {
		return
	}

	// Language gate.
	if gate := langgate.Gate(res.Language, cfg.ExpectedLanguage); !gate.Keep {
		log.Info("chunk dropped: language mismatch",
			"detected", gate.Detected,
			"expected", gate.Expected,
		)
		p.metrics.RecordChunkDropped(ctx, "language_mismatch")
		p.sink.OnChunkStatus(StatusBackgroundIgnored)
		return
	}

	// Translate.
	p.sink.OnChunkStatus(StatusTranslating)
	trStart := time.Now()
	translated, err := p.translator.Translate(ctx, translate.Request{
		Text:           res.Text,
		SourceLanguage: cfg.ExpectedLanguage,
		TargetLanguage: cfg.TargetLanguage,
	})
	p.metrics.TranslateDuration.Record(ctx, time.Since(trStart).Seconds())
	if err != nil {
		log.Warn("translation failed, chunk abandoned", "error", err)
		p.metrics.RecordProviderError(ctx, "translate", "translate")
		p.sink.OnChunkStatus(StatusTranslateFailed)
		return
	}

	if !p.alive(chunk.SessionID) {
		return
	}

	// Enqueue for synthesis and playback.
	id, err := p.queue.Enqueue(translated, cfg.Voice, cfg.TTSModel)
	if err != nil {
		log.Warn("enqueue failed, chunk abandoned", "error", err)
		p.metrics.RecordChunkDropped(ctx, "queue_rejected")
		return
	}
	p.sink.OnChunkStatus(StatusSynthesizing)
	log.Debug("chunk enqueued for synthesis", "job_id", id, "text_len", len(translated))
}
