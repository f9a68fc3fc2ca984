package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder buffers capture frames into the chunk currently being recorded.
// The frame drain goroutine appends while the controller's boundary logic
// opens, rewinds, and finalizes; a mutex keeps the two sides consistent.
type Recorder struct {
	mu sync.Mutex

	sessionID  string
	chunkID    string
	buf        []byte
	sampleRate int
	channels   int
	start      time.Time
	open       bool

	now func() time.Time
}

// NewRecorder creates an idle Recorder.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Open starts a fresh chunk for the given session and format. Any previously
// open chunk is silently discarded, so callers finalize first.
func (r *Recorder) Open(sessionID string, sampleRate, channels int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionID = sessionID
	r.chunkID = uuid.NewString()
	r.buf = nil
	r.sampleRate = sampleRate
	r.channels = channels
	r.start = r.now()
	r.open = true
}

// Append adds captured PCM to the open chunk. Frames arriving while no chunk
// is open are dropped; that only happens between sessions.
func (r *Recorder) Append(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return
	}
	r.buf = append(r.buf, data...)
}

// Rewind discards the buffered audio and restarts the chunk's timing without
// allocating a new chunk. Used at silent boundaries: while no speech has
// occurred this session there is nothing worth keeping, and unbounded silent
// audio must not accumulate.
func (r *Recorder) Rewind() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return
	}
	r.buf = r.buf[:0]
	r.start = r.now()
}

// Finalize closes the open chunk and returns it with the given speech
// snapshot. ok is false when no chunk is open. The recorder keeps no
// reference to the returned data.
func (r *Recorder) Finalize(hadSpeech bool) (c Chunk, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return Chunk{}, false
	}
	c = Chunk{
		ID:         r.chunkID,
		SessionID:  r.sessionID,
		Data:       r.buf,
		SampleRate: r.sampleRate,
		Channels:   r.channels,
		HadSpeech:  hadSpeech,
		Start:      r.start,
		End:        r.now(),
	}
	r.buf = nil
	r.open = false
	return c, true
}

// IsOpen reports whether a chunk is in progress.
func (r *Recorder) IsOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}
