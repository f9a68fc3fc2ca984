// Package app wires all voxlate subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the control loop and HTTP server, and Shutdown
// tears everything down in order.
//
// For testing, inject mock providers via the Providers struct and leave
// server.listen_addr empty so no socket is opened.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/health"
	"github.com/voxlate/voxlate/internal/notify"
	"github.com/voxlate/voxlate/internal/pipeline"
	"github.com/voxlate/voxlate/internal/session"
	"github.com/voxlate/voxlate/internal/ttsqueue"
	"github.com/voxlate/voxlate/internal/vad"
	"github.com/voxlate/voxlate/pkg/audio"
	"github.com/voxlate/voxlate/pkg/provider/stt"
	"github.com/voxlate/voxlate/pkg/provider/translate"
	"github.com/voxlate/voxlate/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. All slots are
// required; main.go populates them via the config registry.
type Providers struct {
	STT       stt.Provider
	Translate translate.Provider
	TTS       tts.Provider

	// Audio is the capture platform; Playback and Router are the output side
	// of the same device surface.
	Audio    audio.Platform
	Playback audio.PlaybackSink
	Router   audio.OutputRouter
}

// App owns all subsystem lifetimes and orchestrates the translation pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	hub        *notify.Hub
	sink       notify.Sink
	detector   *vad.Detector
	controller *session.Controller
	queue      *ttsqueue.Processor
	pipe       *pipeline.Pipeline
	httpServer *http.Server

	logLevel *slog.LevelVar

	// closers are called in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSink replaces the default notification sink (log + WebSocket hub).
func WithSink(s notify.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithLogLevelVar hands the App the level var backing the process logger so
// config reloads can adjust verbosity.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if err := checkProviders(providers); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Notification sink ─────────────────────────────────────────────
	a.hub = notify.NewHub(slog.Default())
	a.closers = append(a.closers, a.hub.Close)
	if a.sink == nil {
		a.sink = notify.Multi{&notify.LogSink{}, a.hub}
	}

	// ── 2. Voice activity detection ──────────────────────────────────────
	a.detector = vad.New(vadConfig(cfg))

	// ── 3. Synthesis queue ───────────────────────────────────────────────
	queueOpts := []ttsqueue.Option{
		ttsqueue.WithStatsFunc(func(s ttsqueue.Stats) {
			a.sink.OnStatsChanged(notify.QueueStats{
				Queued:       s.Queued,
				Synthesizing: s.Synthesizing,
				Ready:        s.Ready,
			})
		}),
	}
	if cfg.Queue.MaxConcurrency > 0 {
		queueOpts = append(queueOpts, ttsqueue.WithMaxConcurrency(cfg.Queue.MaxConcurrency))
	}
	a.queue = ttsqueue.New(providers.TTS, providers.Playback, queueOpts...)

	// ── 4. Session controller ────────────────────────────────────────────
	a.controller = session.NewController(
		sessionConfig(cfg),
		providers.Audio,
		providers.Router,
		a.detector,
		a.sink,
	)

	// ── 5. Pipeline ──────────────────────────────────────────────────────
	a.pipe = pipeline.New(
		pipelineConfig(cfg),
		providers.STT,
		providers.Translate,
		a.queue,
		a.sink,
		a.controller.Alive,
	)

	// ── 6. HTTP control server ───────────────────────────────────────────
	if cfg.Server.ListenAddr != "" {
		a.httpServer = &http.Server{
			Addr:         cfg.Server.ListenAddr,
			Handler:      a.buildMux(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
	}

	return a, nil
}

// checkProviders verifies that every provider slot is populated.
func checkProviders(p *Providers) error {
	var errs []error
	if p.STT == nil {
		errs = append(errs, errors.New("stt provider is required"))
	}
	if p.Translate == nil {
		errs = append(errs, errors.New("translate provider is required"))
	}
	if p.TTS == nil {
		errs = append(errs, errors.New("tts provider is required"))
	}
	if p.Audio == nil {
		errs = append(errs, errors.New("audio platform is required"))
	}
	if p.Playback == nil {
		errs = append(errs, errors.New("playback sink is required"))
	}
	if p.Router == nil {
		errs = append(errs, errors.New("output router is required"))
	}
	return errors.Join(errs...)
}

// buildMux assembles the control server routes: WebSocket UI channel, health
// probes, and Prometheus metrics.
func (a *App) buildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", a.hub)
	mux.Handle("/metrics", promhttp.Handler())

	h := health.New(
		health.StaticChecker("capture", nil),
		health.StaticChecker("stt", nil),
		health.StaticChecker("translate", nil),
		health.StaticChecker("tts", nil),
	)
	h.Register(mux)
	return mux
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the pipeline, the WebSocket command loop, and the HTTP server,
// then blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.pipe.Start(a.controller.Events())

	g, ctx := errgroup.WithContext(ctx)

	if a.httpServer != nil {
		g.Go(func() error {
			slog.Info("control server listening", "addr", a.httpServer.Addr)
			if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Warn("http server shutdown", "error", err)
			}
			return ctx.Err()
		})
	}

	g.Go(func() error {
		slog.Info("app running")
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case cmd := <-a.hub.Commands():
				a.handleCommand(ctx, cmd)
			}
		}
	})

	return g.Wait()
}

// handleCommand maps a UI control message onto the session controller.
func (a *App) handleCommand(ctx context.Context, cmd notify.Command) {
	switch cmd.Action {
	case "start":
		if err := a.controller.Start(ctx); err != nil {
			if errors.Is(err, session.ErrSessionActive) {
				slog.Debug("start command ignored: session already active")
				return
			}
			slog.Error("session start failed", "error", err)
		}
	case "stop":
		if err := a.controller.Stop(); err != nil {
			slog.Error("session stop failed", "error", err)
		}
	default:
		slog.Warn("unknown control command", "action", cmd.Action)
	}
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// ApplyConfig applies a reloaded configuration. Timing, detection, and
// language changes take effect for the next session; provider and server
// changes are logged as requiring a restart. Intended as the config watcher's
// onChange callback.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Any() {
		return
	}

	if d.RestartRequired {
		slog.Warn("provider or server configuration changed; restart required to apply")
	}

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	if d.SessionChanged || d.VADChanged {
		if err := a.controller.UpdateTuning(sessionConfig(new)); err != nil {
			slog.Warn("session tuning not applied: session active; change takes effect after it ends")
		} else {
			if d.VADChanged {
				a.detector.Reconfigure(vadConfig(new))
			}
			slog.Info("session tuning updated")
		}
	}

	if d.LanguagesChanged || d.VoiceChanged {
		a.pipe.UpdateConfig(pipelineConfig(new))
		slog.Info("languages and voice updated",
			"spoken", new.Languages.Spoken,
			"target", new.Languages.Target,
			"voice", new.Voice.ID,
		)
	}

	if d.QueueChanged {
		slog.Warn("queue.max_concurrency changed; restart required to apply")
	}

	a.cfg = new
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears the application down: the HTTP server stops accepting, the
// active session (if any) is stopped so its final chunks flow through, the
// pipeline and queue drain, and remaining closers run in reverse order.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")

		if a.httpServer != nil {
			if err := a.httpServer.Shutdown(ctx); err != nil {
				slog.Warn("http server shutdown", "error", err)
			}
		}

		if err := a.controller.Stop(); err != nil {
			slog.Warn("session stop during shutdown", "error", err)
		}
		a.pipe.Stop()
		a.queue.Stop()

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "error", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Config mapping ──────────────────────────────────────────────────────────

func vadConfig(cfg *config.Config) vad.Config {
	return vad.Config{
		SampleRate:   cfg.VAD.SampleRate,
		SilenceRMS:   cfg.VAD.SilenceRMS,
		VoiceRatio:   cfg.VAD.VoiceRatio,
		WindowSize:   cfg.VAD.WindowSize,
		SustainCount: cfg.VAD.SustainCount,
	}
}

func sessionConfig(cfg *config.Config) session.Config {
	sampleRate := cfg.VAD.SampleRate
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	return session.Config{
		TickInterval:       cfg.Session.TickInterval,
		ChunkInterval:      cfg.Session.ChunkInterval,
		GracePeriod:        cfg.Session.GracePeriod,
		MinSessionDuration: cfg.Session.MinSessionDuration,
		FlushDelay:         cfg.Session.FlushDelay,
		Capture: audio.CaptureConfig{
			SampleRate: sampleRate,
			Channels:   1,
		},
	}
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		ExpectedLanguage: cfg.Languages.Spoken,
		TargetLanguage:   cfg.Languages.Target,
		Voice: tts.VoiceProfile{
			ID:       cfg.Voice.ID,
			Name:     cfg.Voice.Name,
			Language: cfg.Languages.Target,
		},
		TTSModel: cfg.Providers.TTS.Model,
	}
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
