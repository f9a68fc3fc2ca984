package session

import (
	"bytes"
	"testing"
)

func TestRecorderAppendsIntoOpenChunk(t *testing.T) {
	r := NewRecorder()
	r.Open("s1", 48000, 1)

	r.Append([]byte{1, 2})
	r.Append([]byte{3, 4})

	chunk, ok := r.Finalize(true)
	if !ok {
		t.Fatal("Finalize returned ok=false for an open chunk")
	}
	if !bytes.Equal(chunk.Data, []byte{1, 2, 3, 4}) {
		t.Errorf("chunk data = %v, want [1 2 3 4]", chunk.Data)
	}
	if chunk.SessionID != "s1" {
		t.Errorf("session id = %q, want s1", chunk.SessionID)
	}
	if chunk.ID == "" {
		t.Error("chunk id is empty")
	}
	if !chunk.HadSpeech {
		t.Error("speech snapshot not carried into chunk")
	}
	if chunk.SampleRate != 48000 || chunk.Channels != 1 {
		t.Errorf("format = %d/%d, want 48000/1", chunk.SampleRate, chunk.Channels)
	}
}

func TestRecorderFinalizeIsOneShot(t *testing.T) {
	r := NewRecorder()
	r.Open("s1", 48000, 1)
	r.Append([]byte{1})

	if _, ok := r.Finalize(false); !ok {
		t.Fatal("first Finalize failed")
	}
	if _, ok := r.Finalize(false); ok {
		t.Error("second Finalize succeeded; chunk finalized twice")
	}
}

func TestRecorderDropsFramesWhenClosed(t *testing.T) {
	r := NewRecorder()

	r.Append([]byte{9, 9}) // no chunk open

	r.Open("s1", 48000, 1)
	chunk, _ := r.Finalize(false)
	if len(chunk.Data) != 0 {
		t.Errorf("closed-recorder frames leaked into chunk: %v", chunk.Data)
	}
}

func TestRecorderRewindDiscardsBufferInPlace(t *testing.T) {
	r := NewRecorder()
	r.Open("s1", 48000, 1)
	r.Append([]byte{1, 2, 3, 4})

	r.Rewind()
	r.Append([]byte{5, 6})

	chunk, ok := r.Finalize(false)
	if !ok {
		t.Fatal("Finalize failed after Rewind")
	}
	if !bytes.Equal(chunk.Data, []byte{5, 6}) {
		t.Errorf("chunk data = %v, want [5 6]", chunk.Data)
	}
}

func TestRecorderOpenGeneratesFreshChunkIDs(t *testing.T) {
	r := NewRecorder()
	r.Open("s1", 48000, 1)
	first, _ := r.Finalize(false)

	r.Open("s1", 48000, 1)
	second, _ := r.Finalize(false)

	if first.ID == second.ID {
		t.Errorf("consecutive chunks share id %q", first.ID)
	}
}
