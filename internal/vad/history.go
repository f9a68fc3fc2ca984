package vad

// History is a bounded ring buffer of per-tick speech flags. Once full, each
// Push evicts the oldest flag, so Count always reflects the most recent
// capacity ticks.
type History struct {
	data []bool
	size int
	pos  int
	full bool
}

// NewHistory creates a History holding up to size flags. size must be >= 1.
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{
		data: make([]bool, size),
		size: size,
	}
}

// Push records one tick's speech flag, evicting the oldest when full.
func (h *History) Push(speech bool) {
	h.data[h.pos] = speech
	h.pos++
	if h.pos >= h.size {
		h.pos = 0
		h.full = true
	}
}

// Count returns how many of the retained flags are true.
func (h *History) Count() int {
	n := h.pos
	if h.full {
		n = h.size
	}
	count := 0
	for i := range n {
		if h.data[i] {
			count++
		}
	}
	return count
}

// Len returns how many flags are currently retained.
func (h *History) Len() int {
	if h.full {
		return h.size
	}
	return h.pos
}

// Cap returns the window capacity.
func (h *History) Cap() int { return h.size }

// Reset discards all retained flags.
func (h *History) Reset() {
	h.pos = 0
	h.full = false
	for i := range h.data {
		h.data[i] = false
	}
}
