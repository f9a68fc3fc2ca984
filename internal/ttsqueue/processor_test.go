package ttsqueue

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	audiomock "github.com/voxlate/voxlate/pkg/audio/mock"
	"github.com/voxlate/voxlate/pkg/provider/tts"
	ttsmock "github.com/voxlate/voxlate/pkg/provider/tts/mock"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPlaybackIsFIFOUnderOutOfOrderCompletion(t *testing.T) {
	releaseFirst := make(chan struct{})
	synth := &ttsmock.Provider{
		SynthesizeFunc: func(ctx context.Context, req tts.Request) ([]byte, error) {
			if req.Text == "first" {
				select {
				case <-releaseFirst:
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			return []byte(req.Text), nil
		},
	}
	sink := &audiomock.Sink{}
	p := New(synth, sink)
	defer p.Stop()

	id1, err := p.Enqueue("first", tts.VoiceProfile{}, "")
	if err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	id2, err := p.Enqueue("second", tts.VoiceProfile{}, "")
	if err != nil {
		t.Fatalf("enqueue second: %v", err)
	}
	if id2 <= id1 {
		t.Fatalf("job ids not monotonic: %d then %d", id1, id2)
	}

	// Let the second job finish synthesis well before the first.
	waitFor(t, "second job ready", func() bool { return p.Stats().Ready == 1 })
	if len(sink.Calls()) != 0 {
		t.Fatal("playback started before the head job finished")
	}
	close(releaseFirst)

	waitFor(t, "both jobs played", func() bool { return len(sink.Calls()) == 2 })
	calls := sink.Calls()
	if !bytes.Equal(calls[0].PCM, []byte("first")) || !bytes.Equal(calls[1].PCM, []byte("second")) {
		t.Errorf("playback order = %q, %q; want first, second", calls[0].PCM, calls[1].PCM)
	}
}

func TestSynthesisBoundedByMaxConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64
	synth := &ttsmock.Provider{
		SynthesizeFunc: func(ctx context.Context, req tts.Request) ([]byte, error) {
			n := inFlight.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			return []byte(req.Text), nil
		},
	}
	sink := &audiomock.Sink{}
	p := New(synth, sink, WithMaxConcurrency(3))
	defer p.Stop()

	for range 12 {
		if _, err := p.Enqueue("x", tts.VoiceProfile{}, ""); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	waitFor(t, "all jobs played", func() bool { return len(sink.Calls()) == 12 })
	if got := peak.Load(); got > 3 {
		t.Errorf("peak concurrent syntheses = %d, want <= 3", got)
	}
}

func TestFailedSynthesisIsSkippedNotFatal(t *testing.T) {
	synth := &ttsmock.Provider{
		SynthesizeFunc: func(ctx context.Context, req tts.Request) ([]byte, error) {
			if req.Text == "bad" {
				return nil, errors.New("synthesis exploded")
			}
			return []byte(req.Text), nil
		},
	}
	sink := &audiomock.Sink{}
	p := New(synth, sink)
	defer p.Stop()

	p.Enqueue("bad", tts.VoiceProfile{}, "")
	p.Enqueue("good", tts.VoiceProfile{}, "")

	waitFor(t, "surviving job played", func() bool { return len(sink.Calls()) == 1 })
	if got := sink.Calls()[0].PCM; !bytes.Equal(got, []byte("good")) {
		t.Errorf("played %q, want the surviving job", got)
	}
}

func TestPlaybackFailureDoesNotStallQueue(t *testing.T) {
	synth := &ttsmock.Provider{}
	sink := &audiomock.Sink{PlayErr: errors.New("device gone")}
	p := New(synth, sink)
	defer p.Stop()

	p.Enqueue("a", tts.VoiceProfile{}, "")
	p.Enqueue("b", tts.VoiceProfile{}, "")

	waitFor(t, "both jobs attempted", func() bool { return len(sink.Calls()) == 2 })
}

func TestStopWithInFlightAndQueuedJobs(t *testing.T) {
	started := make(chan struct{}, 8)
	synth := &ttsmock.Provider{
		SynthesizeFunc: func(ctx context.Context, req tts.Request) ([]byte, error) {
			started <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	sink := &audiomock.Sink{}
	p := New(synth, sink, WithMaxConcurrency(2))

	// 2 jobs mid-synthesis, 3 waiting for a slot.
	for range 5 {
		if _, err := p.Enqueue("x", tts.VoiceProfile{}, ""); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	waitFor(t, "two jobs synthesizing", func() bool { return len(started) == 2 })

	p.Stop()

	if got := len(sink.Calls()); got != 0 {
		t.Errorf("%d playback calls happened despite Stop", got)
	}
	if got := p.Stats(); got != (Stats{}) {
		t.Errorf("counters not terminal after Stop: %+v", got)
	}
	if _, err := p.Enqueue("late", tts.VoiceProfile{}, ""); !errors.Is(err, ErrStopped) {
		t.Errorf("Enqueue after Stop = %v, want ErrStopped", err)
	}
}

func TestStopIsIdempotentAndConcurrencySafe(t *testing.T) {
	p := New(&ttsmock.Provider{}, &audiomock.Sink{})

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Stop()
		}()
	}
	wg.Wait()
	p.Stop()
}

func TestStatsCallbackSeesTransitions(t *testing.T) {
	var mu sync.Mutex
	var sawSynthesizing bool

	block := make(chan struct{})
	synth := &ttsmock.Provider{
		SynthesizeFunc: func(ctx context.Context, req tts.Request) ([]byte, error) {
			select {
			case <-block:
			case <-ctx.Done():
			}
			return []byte(req.Text), nil
		},
	}
	sink := &audiomock.Sink{}
	p := New(synth, sink, WithStatsFunc(func(s Stats) {
		mu.Lock()
		if s.Synthesizing > 0 {
			sawSynthesizing = true
		}
		mu.Unlock()
	}))
	defer p.Stop()

	p.Enqueue("x", tts.VoiceProfile{}, "")
	waitFor(t, "synthesizing transition observed", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return sawSynthesizing
	})
	close(block)
	waitFor(t, "job played", func() bool { return len(sink.Calls()) == 1 })
}
