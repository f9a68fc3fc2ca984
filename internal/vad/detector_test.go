package vad

import (
	"math"
	"testing"
	"time"
)

const testSampleRate = 48000

// tone synthesises tickLen samples mixing the given frequencies at equal
// amplitude. 100ms at 48kHz keeps every test frequency on an exact bin.
func tone(amplitude float64, freqs ...float64) []float32 {
	const tickLen = testSampleRate / 10
	samples := make([]float32, tickLen)
	if len(freqs) == 0 {
		return samples
	}
	per := amplitude / float64(len(freqs))
	for i := range samples {
		ts := float64(i) / testSampleRate
		var v float64
		for _, f := range freqs {
			v += per * math.Sin(2*math.Pi*f*ts)
		}
		samples[i] = float32(v)
	}
	return samples
}

// voiceTone has energy in both the fundamental and harmonic bands.
func voiceTone() []float32 { return tone(0.2, 150, 1000) }

// hissTone concentrates all energy in the non-voice band.
func hissTone() []float32 { return tone(0.2, 6000) }

func TestProcessSilenceIsNotSpeech(t *testing.T) {
	d := New(Config{SampleRate: testSampleRate})

	dec := d.Process(make([]float32, 4800))
	if dec.Instant || dec.Sustained {
		t.Errorf("silence classified as speech: %+v", dec)
	}
}

func TestProcessNilTapFailsSafe(t *testing.T) {
	d := New(Config{SampleRate: testSampleRate})

	dec := d.Process(nil)
	if dec.Instant || dec.Sustained {
		t.Errorf("nil tap classified as speech: %+v", dec)
	}
}

func TestProcessVoiceBandsFlagInstantSpeech(t *testing.T) {
	d := New(Config{SampleRate: testSampleRate})

	dec := d.Process(voiceTone())
	if !dec.Instant {
		t.Errorf("voice tone not flagged instant; rms=%v", dec.RMS)
	}
}

func TestProcessRejectsNonVoiceEnergy(t *testing.T) {
	d := New(Config{SampleRate: testSampleRate})

	// Loud enough to pass the RMS gate, but all energy sits above 4kHz.
	dec := d.Process(hissTone())
	if dec.RMS <= DefaultSilenceRMS {
		t.Fatalf("test tone too quiet to exercise the band gate: rms=%v", dec.RMS)
	}
	if dec.Instant {
		t.Error("non-voice energy flagged as speech")
	}
}

func TestProcessRejectsMissingFundamental(t *testing.T) {
	d := New(Config{SampleRate: testSampleRate})

	// Harmonic-band energy only; no fundamental.
	dec := d.Process(tone(0.2, 1000))
	if dec.Instant {
		t.Error("tone without fundamental flagged as speech")
	}
}

func TestSustainedRequiresThreeOfFiveTicks(t *testing.T) {
	d := New(Config{SampleRate: testSampleRate})

	if dec := d.Process(voiceTone()); dec.Sustained {
		t.Fatal("sustained after 1 tick")
	}
	if dec := d.Process(voiceTone()); dec.Sustained {
		t.Fatal("sustained after 2 ticks")
	}
	if dec := d.Process(voiceTone()); !dec.Sustained {
		t.Fatal("not sustained on the 3rd qualifying tick")
	}
}

func TestSustainedToleratesBriefGaps(t *testing.T) {
	d := New(Config{SampleRate: testSampleRate})

	d.Process(voiceTone())
	d.Process(voiceTone())
	d.Process(make([]float32, 4800)) // one silent tick inside speech
	d.Process(voiceTone())

	// Window now holds [true true false true]: 3 of 5.
	if dec := d.Process(make([]float32, 4800)); !dec.Sustained {
		t.Error("brief gap broke sustained detection")
	}
}

func TestSingleSpikeIsSuppressed(t *testing.T) {
	d := New(Config{SampleRate: testSampleRate})

	d.Process(voiceTone()) // keyboard click worth of energy
	for range 4 {
		if dec := d.Process(make([]float32, 4800)); dec.Sustained {
			t.Fatal("single spike reported as sustained speech")
		}
	}
}

func TestLastSpeechRefreshesWhileSustained(t *testing.T) {
	d := New(Config{SampleRate: testSampleRate})

	current := time.Unix(0, 0)
	d.now = func() time.Time { return current }

	for range 3 {
		current = current.Add(100 * time.Millisecond)
		d.Process(voiceTone())
	}

	first, ok := d.LastSpeech()
	if !ok {
		t.Fatal("no last-speech timestamp after sustained speech")
	}

	current = current.Add(100 * time.Millisecond)
	d.Process(voiceTone())

	refreshed, _ := d.LastSpeech()
	if !refreshed.After(first) {
		t.Errorf("last-speech not refreshed: first=%v refreshed=%v", first, refreshed)
	}
}

func TestResetClearsWindowAndLastSpeech(t *testing.T) {
	d := New(Config{SampleRate: testSampleRate})

	for range 3 {
		d.Process(voiceTone())
	}
	d.Reset()

	if _, ok := d.LastSpeech(); ok {
		t.Error("last-speech survived Reset")
	}
	// Two qualifying ticks after Reset must not count entries from before it.
	d.Process(voiceTone())
	if dec := d.Process(voiceTone()); dec.Sustained {
		t.Error("window state leaked across Reset")
	}
}
