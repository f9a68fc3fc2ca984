// Package notify delivers pipeline status to the host UI process.
//
// The pipeline reports two kinds of events: queue statistics whenever the
// TTS processor's counters change, and short human-readable chunk statuses
// ("translating", "background audio ignored", ...). Sink is the consumer-side
// interface; LogSink writes events to the structured log, Hub broadcasts them
// to WebSocket subscribers, and Multi fans out to several sinks at once.
package notify

import "log/slog"

// QueueStats is a snapshot of the TTS processor's job counters.
type QueueStats struct {
	// Queued jobs are waiting for a concurrency slot.
	Queued int `json:"queued"`

	// Synthesizing jobs hold a slot right now.
	Synthesizing int `json:"synthesizing"`

	// Ready jobs finished synthesis and are waiting for their playback turn.
	Ready int `json:"ready"`
}

// Sink receives pipeline status events. Implementations must tolerate calls
// from multiple goroutines and must not block: events are advisory, and a
// slow sink must not stall the audio path.
type Sink interface {
	// OnStatsChanged is called whenever queue counters change.
	OnStatsChanged(stats QueueStats)

	// OnChunkStatus reports a short user-visible status for the most recent
	// chunk or session event.
	OnChunkStatus(status string)
}

// Compile-time interface assertions.
var (
	_ Sink = (*LogSink)(nil)
	_ Sink = (Multi)(nil)
	_ Sink = (*Hub)(nil)
)

// LogSink writes events to a structured logger. The zero value logs through
// slog.Default.
type LogSink struct {
	Logger *slog.Logger
}

func (s *LogSink) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *LogSink) OnStatsChanged(stats QueueStats) {
	s.logger().Debug("queue stats changed",
		"queued", stats.Queued,
		"synthesizing", stats.Synthesizing,
		"ready", stats.Ready,
	)
}

func (s *LogSink) OnChunkStatus(status string) {
	s.logger().Info("chunk status", "status", status)
}

// Multi fans events out to every sink in order.
type Multi []Sink

func (m Multi) OnStatsChanged(stats QueueStats) {
	for _, s := range m {
		s.OnStatsChanged(stats)
	}
}

func (m Multi) OnChunkStatus(status string) {
	for _, s := range m {
		s.OnChunkStatus(status)
	}
}
