// Package mock provides a recording notify.Sink for tests.
package mock

import (
	"sync"

	"github.com/voxlate/voxlate/internal/notify"
)

// Compile-time assertion that Sink implements notify.Sink.
var _ notify.Sink = (*Sink)(nil)

// Sink records every event it receives.
type Sink struct {
	mu sync.Mutex

	// StatsChanges records every OnStatsChanged call in order.
	StatsChanges []notify.QueueStats

	// Statuses records every OnChunkStatus call in order.
	Statuses []string
}

func (s *Sink) OnStatsChanged(stats notify.QueueStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StatsChanges = append(s.StatsChanges, stats)
}

func (s *Sink) OnChunkStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Statuses = append(s.Statuses, status)
}

// LastStats returns the most recent stats snapshot, if any.
func (s *Sink) LastStats() (notify.QueueStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.StatsChanges) == 0 {
		return notify.QueueStats{}, false
	}
	return s.StatsChanges[len(s.StatsChanges)-1], true
}

// StatusList returns a snapshot of recorded statuses.
func (s *Sink) StatusList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Statuses))
	copy(out, s.Statuses)
	return out
}
