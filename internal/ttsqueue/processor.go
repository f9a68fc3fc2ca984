// Package ttsqueue implements the bounded-concurrency synthesis and playback
// queue at the end of the translation pipeline.
//
// Translated text is enqueued as jobs. A weighted semaphore bounds how many
// jobs synthesize concurrently (default 3); a single playback goroutine then
// plays finished audio strictly in enqueue order, no matter which synthesis
// finished first. A job whose synthesis or playback fails is logged and
// skipped; the queue keeps flowing.
package ttsqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/voxlate/voxlate/internal/observe"
	"github.com/voxlate/voxlate/pkg/audio"
	"github.com/voxlate/voxlate/pkg/provider/tts"
)

// DefaultMaxConcurrency bounds simultaneous synthesis calls.
const DefaultMaxConcurrency = 3

// jobBuffer bounds how many jobs may be pending at once. Chunks arrive about
// once a second, so hitting this means playback has been wedged for minutes.
const jobBuffer = 256

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("ttsqueue: processor is stopped")

// JobID identifies an enqueued job. IDs are monotonic per processor, so they
// double as the playback order.
type JobID uint64

// Stats is a snapshot of the processor's job counters.
type Stats struct {
	// Queued jobs are waiting for a synthesis slot.
	Queued int

	// Synthesizing jobs hold a slot right now.
	Synthesizing int

	// Ready jobs finished synthesis and await their playback turn.
	Ready int
}

// job is one unit of work. done is closed exactly once, after pcm and err
// are set; the playback goroutine never touches a job before that.
type job struct {
	id  JobID
	req tts.Request

	done chan struct{}
	pcm  []byte
	err  error
}

// Processor is the translate→synthesize→playback queue. Construct with New,
// feed with Enqueue, and shut down with Stop.
type Processor struct {
	synth   tts.Provider
	sink    audio.PlaybackSink
	sem     *semaphore.Weighted
	onStats func(Stats)
	metrics *observe.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan *job
	wg     sync.WaitGroup

	mu           sync.Mutex
	nextID       JobID
	queued       int
	synthesizing int
	ready        int
	prev         Stats
	stopped      bool
}

// Option configures a Processor.
type Option func(*Processor)

// WithMaxConcurrency overrides DefaultMaxConcurrency. Values below 1 are
// ignored.
func WithMaxConcurrency(n int) Option {
	return func(p *Processor) {
		if n >= 1 {
			p.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithStatsFunc registers a callback invoked after every counter change with
// a consistent snapshot. The callback must not block.
func WithStatsFunc(fn func(Stats)) Option {
	return func(p *Processor) { p.onStats = fn }
}

// New creates a Processor and starts its playback goroutine. synth and sink
// must be non-nil.
func New(synth tts.Provider, sink audio.PlaybackSink, opts ...Option) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Processor{
		synth:   synth,
		sink:    sink,
		sem:     semaphore.NewWeighted(DefaultMaxConcurrency),
		metrics: observe.DefaultMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(chan *job, jobBuffer),
	}
	for _, o := range opts {
		o(p)
	}

	p.wg.Add(1)
	go p.playbackLoop()
	return p
}

// Enqueue submits text for synthesis and eventual playback. It never blocks:
// the job is queued and a worker goroutine drives it through the semaphore.
// The returned JobID reflects playback order.
func (p *Processor) Enqueue(text string, voice tts.VoiceProfile, model string) (JobID, error) {
	if text == "" {
		return 0, fmt.Errorf("ttsqueue: text must not be empty")
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return 0, ErrStopped
	}
	p.nextID++
	id := p.nextID
	j := &job{
		id:   id,
		req:  tts.Request{Text: text, Voice: voice, Model: model},
		done: make(chan struct{}),
	}
	select {
	case p.jobs <- j:
	default:
		p.mu.Unlock()
		return 0, fmt.Errorf("ttsqueue: job buffer full")
	}
	p.queued++
	p.wg.Add(1)
	s, d := p.snapshotLocked()
	p.mu.Unlock()

	p.publish(s, d)
	go p.synthesize(j)
	return id, nil
}

// Stats returns a consistent snapshot of the counters in O(1).
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Queued: p.queued, Synthesizing: p.synthesizing, Ready: p.ready}
}

// Stop shuts the processor down: pending synthesis is cancelled, in-flight
// results are discarded, and no playback happens after Stop returns. Safe to
// call at any time, from any goroutine, more than once.
func (p *Processor) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	p.mu.Lock()
	p.queued = 0
	p.synthesizing = 0
	p.ready = 0
	s, d := p.snapshotLocked()
	p.mu.Unlock()
	p.publish(s, d)
}

// synthesize drives one job: acquire a slot, call the provider, publish the
// result. Runs in its own goroutine per job.
func (p *Processor) synthesize(j *job) {
	defer p.wg.Done()
	defer close(j.done)

	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		j.err = err
		p.transition(func() { p.queued-- })
		return
	}
	defer p.sem.Release(1)

	p.transition(func() { p.queued--; p.synthesizing++ })

	start := time.Now()
	pcm, err := p.synth.Synthesize(p.ctx, j.req)
	p.metrics.TTSDuration.Record(p.ctx, time.Since(start).Seconds())
	if err != nil {
		j.err = err
		p.transition(func() { p.synthesizing-- })
		p.metrics.RecordProviderError(p.ctx, "tts", "synthesize")
		slog.Warn("synthesis failed, job skipped", "job_id", j.id, "error", err)
		return
	}

	j.pcm = pcm
	p.transition(func() { p.synthesizing--; p.ready++ })
}

// playbackLoop plays jobs strictly in enqueue order. It waits for each job's
// synthesis to settle before moving on, which is what serialises playback
// even when later jobs finish first.
func (p *Processor) playbackLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.jobs:
			select {
			case <-p.ctx.Done():
				return
			case <-j.done:
			}
			if j.err != nil {
				continue
			}

			err := p.sink.Play(p.ctx, j.pcm)
			p.transition(func() { p.ready-- })
			if err != nil {
				if p.ctx.Err() != nil {
					return
				}
				slog.Warn("playback failed, job skipped", "job_id", j.id, "error", err)
			}
		}
	}
}

// transition applies a counter mutation under the lock and pushes a stats
// snapshot.
func (p *Processor) transition(mutate func()) {
	p.mu.Lock()
	mutate()
	s, d := p.snapshotLocked()
	p.mu.Unlock()
	p.publish(s, d)
}

// snapshotLocked captures the counters and the change since the previous
// snapshot. Callers hold mu.
func (p *Processor) snapshotLocked() (cur, delta Stats) {
	cur = Stats{Queued: p.queued, Synthesizing: p.synthesizing, Ready: p.ready}
	delta = Stats{
		Queued:       cur.Queued - p.prev.Queued,
		Synthesizing: cur.Synthesizing - p.prev.Synthesizing,
		Ready:        cur.Ready - p.prev.Ready,
	}
	p.prev = cur
	return cur, delta
}

// publish records gauge movements and invokes the stats callback.
func (p *Processor) publish(s, d Stats) {
	ctx := context.Background()
	p.metrics.RecordQueueJobs(ctx, "queued", int64(d.Queued))
	p.metrics.RecordQueueJobs(ctx, "synthesizing", int64(d.Synthesizing))
	p.metrics.RecordQueueJobs(ctx, "ready", int64(d.Ready))
	if p.onStats != nil {
		p.onStats(s)
	}
}
