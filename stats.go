package dashcache

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Stats tracks cache effectiveness counters. Hits and misses are recorded by
// the manager on lookups; evictions and expirations are recorded by the local
// store. Counters accumulate for the life of the process and zero only on
// Reset. All methods are safe for concurrent use and on a nil receiver.
type Stats struct {
	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64
}

// NewStats returns a zeroed counter set.
func NewStats() *Stats { return &Stats{} }

func (s *Stats) recordHit() {
	if s == nil {
		return
	}
	s.hits.Add(1)
}

func (s *Stats) recordMiss() {
	if s == nil {
		return
	}
	s.misses.Add(1)
}

func (s *Stats) recordEvictions(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.evictions.Add(uint64(n))
}

func (s *Stats) recordExpirations(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.expirations.Add(uint64(n))
}

// Reset zeroes every counter. Counters otherwise persist until process exit.
func (s *Stats) Reset() {
	if s == nil {
		return
	}
	s.hits.Store(0)
	s.misses.Store(0)
	s.evictions.Store(0)
	s.expirations.Store(0)
}

// Snapshot captures the counters at a point in time. Size, MaxEntries and
// RemoteAttached are filled by the manager, which knows the store topology.
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{Timestamp: time.Now().UTC()}
	}
	hits := s.hits.Load()
	misses := s.misses.Load()
	total := hits + misses
	rate := 0.0
	if total > 0 {
		rate = float64(hits) / float64(total) * 100
	}
	return StatsSnapshot{
		Hits:          hits,
		Misses:        misses,
		Evictions:     s.evictions.Load(),
		Expirations:   s.expirations.Load(),
		TotalRequests: total,
		HitRate:       rate,
		Timestamp:     time.Now().UTC(),
	}
}

// StatsSnapshot is a point-in-time view of cache activity, shaped like the
// payload the dashboard admin endpoint serves.
type StatsSnapshot struct {
	Hits           uint64    `json:"hits"`
	Misses         uint64    `json:"misses"`
	Evictions      uint64    `json:"evictions"`
	Expirations    uint64    `json:"expirations"`
	TotalRequests  uint64    `json:"total_requests"`
	HitRate        float64   `json:"hit_rate"`
	Size           int       `json:"size"`
	MaxEntries     int       `json:"max_entries"`
	RemoteAttached bool      `json:"remote_attached"`
	Timestamp      time.Time `json:"timestamp"`
}

// FormattedHitRate renders the hit rate the way the dashboard displays it,
// e.g. "66.67%".
func (s StatsSnapshot) FormattedHitRate() string {
	return fmt.Sprintf("%.2f%%", s.HitRate)
}
