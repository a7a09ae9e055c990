package cache

import (
	"sync"
	"time"
)

// stats tracks cache performance counters. All mutation goes through the
// helper methods so callers never touch the mutex directly.
type stats struct {
	mu        sync.Mutex
	hits      int
	misses    int
	saves     int
	evictions int
	start     time.Time
}

func newStats() *stats {
	return &stats{start: time.Now()}
}

func (s *stats) hit()  { s.mu.Lock(); s.hits++; s.mu.Unlock() }
func (s *stats) miss() { s.mu.Lock(); s.misses++; s.mu.Unlock() }
func (s *stats) save() { s.mu.Lock(); s.saves++; s.mu.Unlock() }

func (s *stats) evicted(n int) {
	s.mu.Lock()
	s.evictions += n
	s.mu.Unlock()
}

// StatsSnapshot is a point-in-time view of cache performance.
type StatsSnapshot struct {
	Hits          int           `json:"hits"`
	Misses        int           `json:"misses"`
	Saves         int           `json:"saves"`
	Evictions     int           `json:"evictions"`
	HitRate       float64       `json:"hit_rate"`
	TotalRequests int           `json:"total_requests"`
	Uptime        time.Duration `json:"uptime"`
	MemoryItems   int           `json:"memory_items"`
	DiskItems     int           `json:"disk_items"`
}

// snapshot captures the counters; tier occupancy is filled in by the facade.
func (s *stats) snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.hits + s.misses
	rate := 0.0
	if total > 0 {
		rate = float64(s.hits) / float64(total)
	}
	return StatsSnapshot{
		Hits:          s.hits,
		Misses:        s.misses,
		Saves:         s.saves,
		Evictions:     s.evictions,
		HitRate:       rate,
		TotalRequests: total,
		Uptime:        time.Since(s.start).Truncate(time.Second),
	}
}
