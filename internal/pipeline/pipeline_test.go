package pipeline

import (
	"bytes"
	"errors"
	"testing"
	"time"

	notifymock "github.com/voxlate/voxlate/internal/notify/mock"
	"github.com/voxlate/voxlate/internal/session"
	"github.com/voxlate/voxlate/internal/ttsqueue"
	audiomock "github.com/voxlate/voxlate/pkg/audio/mock"
	"github.com/voxlate/voxlate/pkg/provider/stt"
	sttmock "github.com/voxlate/voxlate/pkg/provider/stt/mock"
	translatemock "github.com/voxlate/voxlate/pkg/provider/translate/mock"
	ttsmock "github.com/voxlate/voxlate/pkg/provider/tts/mock"
)

type fixture struct {
	stt        *sttmock.Provider
	translator *translatemock.Provider
	synth      *ttsmock.Provider
	playback   *audiomock.Sink
	queue      *ttsqueue.Processor
	sink       *notifymock.Sink
	events     chan session.Chunk
	pipeline   *Pipeline
}

func newFixture(t *testing.T, cfg Config, alive Liveness) *fixture {
	t.Helper()
	f := &fixture{
		stt:        &sttmock.Provider{},
		translator: &translatemock.Provider{},
		synth:      &ttsmock.Provider{},
		playback:   &audiomock.Sink{},
		sink:       &notifymock.Sink{},
		events:     make(chan session.Chunk, 8),
	}
	f.queue = ttsqueue.New(f.synth, f.playback)
	f.pipeline = New(cfg, f.stt, f.translator, f.queue, f.sink, alive)
	f.pipeline.Start(f.events)
	t.Cleanup(func() {
		f.pipeline.Stop()
		f.queue.Stop()
	})
	return f
}

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

func testChunk(id string) session.Chunk {
	return session.Chunk{
		ID:         id,
		SessionID:  "s1",
		Data:       []byte{1, 2, 3, 4},
		SampleRate: 48000,
		Channels:   1,
		HadSpeech:  true,
	}
}

func TestChunkFlowsThroughToPlayback(t *testing.T) {
	f := newFixture(t, Config{ExpectedLanguage: "en", TargetLanguage: "de"}, nil)
	f.stt.Result = stt.Result{Text: "hello there", Language: "english"}

	f.events <- testChunk("c1")

	waitFor(t, "playback", func() bool { return len(f.playback.Calls()) == 1 })

	// The mock translator prefixes the target language; the mock synthesiser
	// returns the text as PCM.
	want := []byte("de: hello there")
	if got := f.playback.Calls()[0].PCM; !bytes.Equal(got, want) {
		t.Errorf("played %q, want %q", got, want)
	}

	calls := f.stt.Calls()
	if len(calls) != 1 {
		t.Fatalf("stt calls = %d, want 1", len(calls))
	}
	if calls[0].Config.SampleRate != 48000 || calls[0].Config.ExpectedLanguage != "en" {
		t.Errorf("stt config = %+v", calls[0].Config)
	}
}

func TestLanguageMismatchDropsChunkBeforeTranslation(t *testing.T) {
	f := newFixture(t, Config{ExpectedLanguage: "en", TargetLanguage: "de"}, nil)
	f.stt.Result = stt.Result{Text: "hola que tal", Language: "spanish"}

	f.events <- testChunk("c1")

	waitFor(t, "mismatch status", func() bool {
		for _, s := range f.sink.StatusList() {
			if s == StatusBackgroundIgnored {
				return true
			}
		}
		return false
	})

	if n := len(f.translator.Calls()); n != 0 {
		t.Errorf("mismatched chunk reached translation (%d calls)", n)
	}
	if n := len(f.playback.Calls()); n != 0 {
		t.Errorf("mismatched chunk reached playback (%d calls)", n)
	}
}

func TestTranscriptionErrorAbandonsOnlyThatChunk(t *testing.T) {
	f := newFixture(t, Config{ExpectedLanguage: "en", TargetLanguage: "de"}, nil)
	f.stt.Err = errors.New("stt down")

	f.events <- testChunk("c1")
	waitFor(t, "failure status", func() bool {
		for _, s := range f.sink.StatusList() {
			if s == StatusSTTFailed {
				return true
			}
		}
		return false
	})

	// Service recovers; the next chunk flows through.
	f.stt.Err = nil
	f.stt.Result = stt.Result{Text: "second chunk", Language: "en"}
	f.events <- testChunk("c2")

	waitFor(t, "recovered playback", func() bool { return len(f.playback.Calls()) == 1 })
	if n := len(f.translator.Calls()); n != 1 {
		t.Errorf("translate calls = %d, want 1 (failed chunk must not translate)", n)
	}
}

func TestSkippedTranscriptionNeverTranslates(t *testing.T) {
	f := newFixture(t, Config{ExpectedLanguage: "en", TargetLanguage: "de"}, nil)
	f.stt.Result = stt.Result{Skipped: true, Reason: "silence"}

	f.events <- testChunk("c1")
	waitFor(t, "no-speech status", func() bool {
		for _, s := range f.sink.StatusList() {
			if s == StatusNoSpeech {
				return true
			}
		}
		return false
	})

	if n := len(f.translator.Calls()); n != 0 {
		t.Errorf("skipped chunk reached translation (%d calls)", n)
	}
}

func TestTranslationErrorAbandonsChunk(t *testing.T) {
	f := newFixture(t, Config{ExpectedLanguage: "en", TargetLanguage: "de"}, nil)
	f.stt.Result = stt.Result{Text: "hello", Language: "en"}
	f.translator.Err = errors.New("llm down")

	f.events <- testChunk("c1")
	waitFor(t, "translate failure status", func() bool {
		for _, s := range f.sink.StatusList() {
			if s == StatusTranslateFailed {
				return true
			}
		}
		return false
	})

	if n := len(f.playback.Calls()); n != 0 {
		t.Errorf("failed chunk reached playback (%d calls)", n)
	}
}

func TestDeadSessionChunksAreDiscardedSilently(t *testing.T) {
	f := newFixture(t, Config{ExpectedLanguage: "en", TargetLanguage: "de"}, func(string) bool { return false })
	f.stt.Result = stt.Result{Text: "hello", Language: "en"}

	f.events <- testChunk("c1")
	time.Sleep(50 * time.Millisecond)

	if n := len(f.stt.Calls()); n != 0 {
		t.Errorf("dead session chunk reached transcription (%d calls)", n)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	f := newFixture(t, Config{ExpectedLanguage: "en", TargetLanguage: "de"}, nil)
	f.pipeline.Stop()
	f.pipeline.Stop()
}
