// Package vad implements frequency-band voice activity detection with
// short-term hysteresis.
//
// Each tick (100ms by default) the detector receives the capture stream's
// analysis tap and classifies it: an RMS gate rejects silence, then the
// energies of three frequency bands of the FFT decide whether the audio looks
// like human speech rather than clicks, pops, or hum. Instant per-tick flags
// feed a 5-slot sliding window; only 3 or more positive ticks in the window
// count as sustained speech. The window suppresses single-frame spikes while
// tolerating brief gaps inside continuous speech.
//
// The detector is not safe for concurrent use. The session controller owns it
// and calls Process from a single tick goroutine.
package vad

import (
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Defaults chosen to catch quiet speech without demanding a calibrated
// input level.
const (
	// DefaultTickInterval is how often the session controller samples the
	// analysis tap.
	DefaultTickInterval = 100 * time.Millisecond

	// DefaultSilenceRMS is the normalised RMS level below which a tick is
	// silence regardless of spectral content.
	DefaultSilenceRMS = 0.005

	// DefaultMinBandEnergy is the minimum normalised energy the fundamental
	// and harmonic bands must each carry.
	DefaultMinBandEnergy = 1e-6

	// DefaultVoiceRatio is how much the combined voice bands must dominate
	// the non-voice band.
	DefaultVoiceRatio = 1.5

	// DefaultWindowSize and DefaultSustainCount define the hysteresis: at
	// least 3 of the last 5 ticks must flag speech.
	DefaultWindowSize   = 5
	DefaultSustainCount = 3
)

// Voice band edges in Hz. Fundamental covers typical speaking pitch,
// harmonics the formant range, non-voice the band where clicks and static
// carry most of their energy.
const (
	fundamentalLowHz  = 85
	fundamentalHighHz = 300
	harmonicsHighHz   = 4000
	nonVoiceHighHz    = 8000
)

// Config parameterises a Detector. Zero fields fall back to defaults.
type Config struct {
	// SampleRate of the analysis tap in Hz. Required; frequency-bin math
	// derives from it.
	SampleRate int

	// SilenceRMS overrides DefaultSilenceRMS.
	SilenceRMS float64

	// MinBandEnergy overrides DefaultMinBandEnergy.
	MinBandEnergy float64

	// VoiceRatio overrides DefaultVoiceRatio.
	VoiceRatio float64

	// WindowSize and SustainCount override the hysteresis defaults.
	WindowSize   int
	SustainCount int
}

func (c *Config) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if c.SilenceRMS <= 0 {
		c.SilenceRMS = DefaultSilenceRMS
	}
	if c.MinBandEnergy <= 0 {
		c.MinBandEnergy = DefaultMinBandEnergy
	}
	if c.VoiceRatio <= 0 {
		c.VoiceRatio = DefaultVoiceRatio
	}
	if c.WindowSize <= 0 {
		c.WindowSize = DefaultWindowSize
	}
	if c.SustainCount <= 0 {
		c.SustainCount = DefaultSustainCount
	}
}

// Decision is the outcome of one tick.
type Decision struct {
	// Instant is this tick's raw classification before hysteresis.
	Instant bool

	// Sustained is true when enough recent ticks flagged speech. This is the
	// signal the session controller acts on.
	Sustained bool

	// RMS is the tick's normalised amplitude, exposed for metrics.
	RMS float64
}

// Detector classifies analysis-tap samples tick by tick.
type Detector struct {
	cfg    Config
	window *History

	// fft is cached per input length; tap sizes are stable between device
	// reconfigurations.
	fft    *fourier.FFT
	fftLen int
	seq    []float64

	lastSpeech    time.Time
	hasLastSpeech bool

	now func() time.Time
}

// New creates a Detector. The zero Config is usable but assumes 48kHz input.
func New(cfg Config) *Detector {
	cfg.applyDefaults()
	return &Detector{
		cfg:    cfg,
		window: NewHistory(cfg.WindowSize),
		now:    time.Now,
	}
}

// Reconfigure replaces the tuning and clears all accumulated state. Must not
// be called while a session's tick loop is running.
func (d *Detector) Reconfigure(cfg Config) {
	cfg.applyDefaults()
	d.cfg = cfg
	d.window = NewHistory(cfg.WindowSize)
	d.fft = nil
	d.fftLen = 0
	d.seq = nil
	d.lastSpeech = time.Time{}
	d.hasLastSpeech = false
}

// Process folds one tick's samples into the detector and returns the
// decision. A nil or empty tap means no audio is observable; that is treated
// as silence, never as an error.
func (d *Detector) Process(samples []float32) Decision {
	instant := d.classify(samples)

	d.window.Push(instant)
	sustained := d.window.Count() >= d.cfg.SustainCount
	if sustained {
		d.lastSpeech = d.now()
		d.hasLastSpeech = true
	}

	return Decision{
		Instant:   instant,
		Sustained: sustained,
		RMS:       rms(samples),
	}
}

// LastSpeech returns the time of the most recent sustained-speech tick. ok is
// false when no sustained speech has been observed since the last Reset.
func (d *Detector) LastSpeech() (t time.Time, ok bool) {
	return d.lastSpeech, d.hasLastSpeech
}

// Reset clears the window and the last-speech timestamp. Called at session
// start so one session's trailing speech cannot leak into the next.
func (d *Detector) Reset() {
	d.window.Reset()
	d.hasLastSpeech = false
	d.lastSpeech = time.Time{}
}

// classify computes this tick's instant speech flag: RMS gate first, band
// energies only when the gate passes.
func (d *Detector) classify(samples []float32) bool {
	if len(samples) < 2 {
		return false
	}
	if rms(samples) <= d.cfg.SilenceRMS {
		return false
	}

	fundamental, harmonics, nonVoice := d.bandEnergies(samples)

	if fundamental < d.cfg.MinBandEnergy || harmonics < d.cfg.MinBandEnergy {
		return false
	}
	return fundamental+harmonics >= d.cfg.VoiceRatio*nonVoice
}

// bandEnergies runs a real FFT over the samples and sums normalised bin
// energies for the fundamental, harmonic, and non-voice bands.
func (d *Detector) bandEnergies(samples []float32) (fundamental, harmonics, nonVoice float64) {
	n := len(samples)
	if d.fft == nil || d.fftLen != n {
		d.fft = fourier.NewFFT(n)
		d.fftLen = n
		d.seq = make([]float64, n)
	}
	for i, s := range samples {
		d.seq[i] = float64(s)
	}

	coeffs := d.fft.Coefficients(nil, d.seq)
	norm := float64(n) * float64(n)

	for i, c := range coeffs {
		hz := d.fft.Freq(i) * float64(d.cfg.SampleRate)
		energy := (real(c)*real(c) + imag(c)*imag(c)) / norm
		switch {
		case hz >= fundamentalLowHz && hz < fundamentalHighHz:
			fundamental += energy
		case hz >= fundamentalHighHz && hz < harmonicsHighHz:
			harmonics += energy
		case hz >= harmonicsHighHz && hz < nonVoiceHighHz:
			nonVoice += energy
		}
	}
	return fundamental, harmonics, nonVoice
}

// rms returns the root-mean-square amplitude of normalised samples.
func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
