package cache

import (
	"testing"
	"time"
)

// fakeClock drives store time explicitly.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore() (*Store, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewWithClock(clk.now), clk
}

func TestStore_PutGet(t *testing.T) {
	s, _ := newTestStore()
	s.Put("k", "v", 100*time.Millisecond)

	got, ok := s.Get("k")
	if !ok || got != "v" {
		t.Fatalf("Get(k) = %q, %v; want v, true", got, ok)
	}

	stats := s.Stats()
	if stats.Hits != 1 || stats.Misses != 0 {
		t.Errorf("stats = %+v, want 1 hit 0 misses", stats)
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	s, clk := newTestStore()
	s.Put("k", "v", 100*time.Millisecond)

	clk.advance(101 * time.Millisecond)

	if _, ok := s.Get("k"); ok {
		t.Fatal("expected miss after TTL expiry")
	}

	stats := s.Stats()
	if stats.Misses != 1 {
		t.Errorf("misses = %d, want 1", stats.Misses)
	}
	if stats.Hits != 0 {
		t.Errorf("hits = %d, want 0", stats.Hits)
	}
	if stats.Evictions != 1 {
		t.Errorf("evictions = %d, want 1", stats.Evictions)
	}
}

func TestStore_HitRate(t *testing.T) {
	s, _ := newTestStore()
	if got := s.Stats().HitRate(); got != 0 {
		t.Errorf("hit rate before any access = %v, want 0", got)
	}

	s.Put("k", "v", time.Minute)
	s.Get("k")
	s.Get("absent")

	if got := s.Stats().HitRate(); got != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", got)
	}
}

func TestStore_ExistsDoesNotCount(t *testing.T) {
	s, clk := newTestStore()
	s.Put("k", "v", time.Minute)

	if !s.Exists("k") {
		t.Error("Exists(k) = false, want true")
	}
	clk.advance(2 * time.Minute)
	if s.Exists("k") {
		t.Error("Exists(k) after expiry = true, want false")
	}
	if stats := s.Stats(); stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("Exists must not touch counters, got %+v", stats)
	}
}

func TestStore_RemoveByPattern(t *testing.T) {
	s, _ := newTestStore()
	s.Put("url:https://a.com/", "1", time.Minute)
	s.Put("url:https://b.com/", "2", time.Minute)
	s.Put("email:x@a.com", "3", time.Minute)

	// The wildcard must span the separators embedded in URL keys.
	if n := s.RemoveByPattern("url:*"); n != 2 {
		t.Errorf("RemoveByPattern(url:*) = %d, want 2", n)
	}
	if s.Size() != 1 {
		t.Errorf("size = %d, want 1", s.Size())
	}
	if n := s.RemoveByPattern("hash:*"); n != 0 {
		t.Errorf("RemoveByPattern(hash:*) = %d, want 0", n)
	}
	if n := s.RemoveByPattern("email:?@a.com"); n != 1 {
		t.Errorf("RemoveByPattern(email:?@a.com) = %d, want 1", n)
	}
}

func TestStore_ClearExpired(t *testing.T) {
	s, clk := newTestStore()
	s.Put("short", "1", 10*time.Millisecond)
	s.Put("long", "2", time.Hour)

	clk.advance(time.Minute)

	if n := s.ClearExpired(); n != 1 {
		t.Errorf("ClearExpired() = %d, want 1", n)
	}
	if s.Stats().Evictions != 1 {
		t.Errorf("evictions = %d, want 1", s.Stats().Evictions)
	}
	if _, ok := s.Get("long"); !ok {
		t.Error("long-lived entry should survive ClearExpired")
	}
}

func TestStore_ClearAll(t *testing.T) {
	s, _ := newTestStore()
	s.Put("a", "1", time.Minute)
	s.Put("b", "2", time.Minute)

	if n := s.ClearAll(); n != 2 {
		t.Errorf("ClearAll() = %d, want 2", n)
	}
	if s.Size() != 0 {
		t.Errorf("size = %d, want 0", s.Size())
	}
	if s.Stats().Evictions != 0 {
		t.Error("ClearAll must not count as evictions")
	}
}

func TestStore_UpdateTTL(t *testing.T) {
	s, clk := newTestStore()
	s.Put("k", "v", 10*time.Millisecond)

	if !s.UpdateTTL("k", time.Hour) {
		t.Fatal("UpdateTTL on live entry = false")
	}
	clk.advance(time.Minute)
	if _, ok := s.Get("k"); !ok {
		t.Error("entry should be alive after TTL extension")
	}

	if s.UpdateTTL("absent", time.Hour) {
		t.Error("UpdateTTL on absent key = true")
	}
	clk.advance(2 * time.Hour)
	if s.UpdateTTL("k", time.Hour) {
		t.Error("UpdateTTL on expired entry = true")
	}
}

func TestStore_RemainingTTL(t *testing.T) {
	s, clk := newTestStore()
	s.Put("k", "v", time.Minute)

	clk.advance(20 * time.Second)
	rem, ok := s.RemainingTTL("k")
	if !ok || rem != 40*time.Second {
		t.Errorf("RemainingTTL = %v, %v; want 40s, true", rem, ok)
	}

	clk.advance(time.Minute)
	if _, ok := s.RemainingTTL("k"); ok {
		t.Error("RemainingTTL on expired entry should report false")
	}
}
