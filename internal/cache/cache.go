// Package cache implements a mutex-guarded in-memory TTL store with
// hit/miss/eviction accounting. Expiry is lazy: an expired entry reads
// as absent without requiring eager deletion, and is only counted as
// evicted when it is actually removed.
package cache

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Stats is a snapshot of the store's monotonic access counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns hits/(hits+misses), or 0 before any access.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Store is a thread-safe keyed TTL store. Values are opaque strings,
// typically JSON. The zero value is not usable; call New.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	stats   Stats
	now     func() time.Time
}

// New creates an empty Store using the wall clock.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock creates a Store driven by the given clock. Tests advance
// time through the clock instead of sleeping.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     now,
	}
}

// Put stores value under key with the given TTL, replacing any
// previous entry.
func (s *Store) Put(key, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &entry{value: value, expiresAt: s.now().Add(ttl)}
}

// Get returns the value for key. An absent or expired entry is a miss;
// the expiry check and the read are atomic under the store lock.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.stats.Misses++
		return "", false
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, key)
		s.stats.Evictions++
		s.stats.Misses++
		return "", false
	}
	s.stats.Hits++
	return e.value, true
}

// Exists reports whether key holds a live entry. Does not touch the
// hit/miss counters.
func (s *Store) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return ok && !s.now().After(e.expiresAt)
}

// Remove deletes key. Returns true if a live entry was removed.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	delete(s.entries, key)
	return !s.now().After(e.expiresAt)
}

// RemoveByPattern deletes all keys matching the glob pattern and
// returns the number removed. `*` matches any run of characters
// including separators, `?` matches a single character; keys carry
// embedded URLs, so the glob is deliberately separator-agnostic.
func (s *Store) RemoveByPattern(pattern string) int {
	re, err := compileGlob(pattern)
	if err != nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.entries {
		if re.MatchString(k) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

func compileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// ClearExpired removes every expired entry and returns the count.
func (s *Store) ClearExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
			s.stats.Evictions++
			n++
		}
	}
	return n
}

// ClearAll empties the store and returns the number of entries removed.
// Entries removed this way are not counted as evictions.
func (s *Store) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	s.entries = make(map[string]*entry)
	return n
}

// Size returns the number of stored entries, including any expired
// entries not yet purged.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// UpdateTTL resets the expiry of a live entry to now+ttl. Returns false
// when the key is absent or already expired.
func (s *Store) UpdateTTL(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || s.now().After(e.expiresAt) {
		return false
	}
	e.expiresAt = s.now().Add(ttl)
	return true
}

// RemainingTTL returns the time until key expires. Returns false when
// the key is absent or expired.
func (s *Store) RemainingTTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return 0, false
	}
	rem := e.expiresAt.Sub(s.now())
	if rem <= 0 {
		return 0, false
	}
	return rem, true
}

// Stats returns a snapshot of the access counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
