package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/valuationhq/propcache/query"
)

// memoryEntry is the in-process representation of a cached valuation.
// addresses holds the normalized address set so the memory tier can honor
// address invalidation without re-reading the disk tier.
type memoryEntry struct {
	val        *query.Valuation
	addresses  []string
	insertedAt time.Time
	hits       int
}

type memoryStore struct {
	mu       sync.Mutex
	entries  map[string]*memoryEntry
	maxItems int
	ttl      time.Duration
	stats    *stats
}

func newMemoryStore(maxItems int, ttl time.Duration, st *stats) *memoryStore {
	return &memoryStore{
		entries:  make(map[string]*memoryEntry),
		maxItems: maxItems,
		ttl:      ttl,
		stats:    st,
	}
}

// get returns the live entry for key. An entry past its TTL is deleted and
// reported as a miss (lazy expiry). The TTL is absolute from insertion; a hit
// bumps the access count but never refreshes the timestamp.
func (s *memoryStore) get(key string, now time.Time) (*query.Valuation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if now.Sub(entry.insertedAt) > s.ttl {
		delete(s.entries, key)
		return nil, false
	}
	entry.hits++
	return entry.val, true
}

// put stores a value, evicting first when the store is at capacity.
// A put to an existing key resets its timestamp and access count.
func (s *memoryStore) put(key string, val *query.Valuation, addresses []string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxItems {
		s.evictLocked()
	}
	s.entries[key] = &memoryEntry{
		val:        val,
		addresses:  addresses,
		insertedAt: now,
		hits:       1,
	}
}

// evictLocked removes the least-used, then oldest, quarter of the store
// (at least one entry). Evicting a fraction rather than a single entry
// amortizes the sort across many subsequent insertions.
func (s *memoryStore) evictLocked() {
	if len(s.entries) == 0 {
		return
	}
	type candidate struct {
		key   string
		entry *memoryEntry
	}
	candidates := make([]candidate, 0, len(s.entries))
	for key, entry := range s.entries {
		candidates = append(candidates, candidate{key, entry})
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].entry, candidates[j].entry
		if a.hits != b.hits {
			return a.hits < b.hits
		}
		return a.insertedAt.Before(b.insertedAt)
	})
	remove := max(1, s.maxItems/4)
	if remove > len(candidates) {
		remove = len(candidates)
	}
	for i := 0; i < remove; i++ {
		delete(s.entries, candidates[i].key)
	}
	s.stats.evicted(remove)
}

// invalidateAddress removes every entry whose normalized address set contains
// the (already normalized) target substring, returning the count removed.
func (s *memoryStore) invalidateAddress(normalized string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, entry := range s.entries {
		for _, addr := range entry.addresses {
			if strings.Contains(addr, normalized) {
				delete(s.entries, key)
				removed++
				break
			}
		}
	}
	return removed
}

func (s *memoryStore) sweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, entry := range s.entries {
		if now.Sub(entry.insertedAt) > s.ttl {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *memoryStore) clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	s.entries = make(map[string]*memoryEntry)
	return n
}

func (s *memoryStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
