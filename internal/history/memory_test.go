package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/safecheck/safecheck/internal/scoring"
	"github.com/safecheck/safecheck/internal/target"
)

func mustResult(t *testing.T, id string, tgt target.Target, delta int, ts time.Time) *scoring.ScanResult {
	t.Helper()
	reasons := []scoring.Reason{scoring.MustReason("TEST_SIGNAL", "test signal", delta)}
	score := scoring.Compute(reasons)
	r, err := scoring.Restore(id, tgt, score, scoring.StatusFromScore(score), reasons, map[string]string{}, ts)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	return r
}

func urlTarget(v string) target.Target {
	return target.Target{Kind: target.KindURL, Value: v}
}

func TestMemoryRepository_saveAndGetByID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	r := mustResult(t, "scan-1", urlTarget("https://example.com/"), 0, time.Now().UTC())

	if err := repo.SaveScanResult(ctx, r); err != nil {
		t.Fatalf("SaveScanResult: %v", err)
	}

	got, err := repo.GetScanResultByID(ctx, "scan-1")
	if err != nil {
		t.Fatalf("GetScanResultByID: %v", err)
	}
	if got.ScanID != r.ScanID || got.Score != r.Score || got.Target != r.Target {
		t.Errorf("got %+v, want %+v", got, r)
	}
}

func TestMemoryRepository_getByIDMissing(t *testing.T) {
	repo := NewMemoryRepository()
	_, err := repo.GetScanResultByID(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryRepository_latestForTarget(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	tgt := urlTarget("https://example.com/")
	base := time.Now().UTC()

	// Saved out of timestamp order; newest must still win.
	_ = repo.SaveScanResult(ctx, mustResult(t, "new", tgt, -20, base))
	_ = repo.SaveScanResult(ctx, mustResult(t, "old", tgt, 0, base.Add(-time.Hour)))
	_ = repo.SaveScanResult(ctx, mustResult(t, "other", urlTarget("https://other.com/"), 0, base))

	got, err := repo.GetLatestScanForTarget(ctx, tgt)
	if err != nil {
		t.Fatalf("GetLatestScanForTarget: %v", err)
	}
	if got.ScanID != "new" {
		t.Errorf("latest scan = %s, want new", got.ScanID)
	}

	if _, err := repo.GetLatestScanForTarget(ctx, urlTarget("https://absent.com/")); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryRepository_storedCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	r := mustResult(t, "scan-1", urlTarget("https://example.com/"), 0, time.Now().UTC())
	r.Metadata["k"] = "original"
	_ = repo.SaveScanResult(ctx, r)

	// Mutating the saved pointer must not affect repository state.
	r.Metadata["k"] = "mutated"

	got, _ := repo.GetScanResultByID(ctx, "scan-1")
	if got.Metadata["k"] != "original" {
		t.Errorf("repository shared metadata with caller: %q", got.Metadata["k"])
	}

	// Mutating a retrieved copy must not affect the next read.
	got.Metadata["k"] = "tampered"
	again, _ := repo.GetScanResultByID(ctx, "scan-1")
	if again.Metadata["k"] != "original" {
		t.Errorf("retrieved copy shared metadata: %q", again.Metadata["k"])
	}
}

func TestMemoryRepository_pagination(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		_ = repo.SaveScanResult(ctx, mustResult(t, id, urlTarget("https://example.com/"+id), 0, base.Add(time.Duration(i)*time.Minute)))
	}

	page, err := repo.GetScanResults(ctx, 2, 1)
	if err != nil {
		t.Fatalf("GetScanResults: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}
	// Newest first: e, d, c, b, a; offset 1 → d, c.
	if page[0].ScanID != "d" || page[1].ScanID != "c" {
		t.Errorf("page = [%s %s], want [d c]", page[0].ScanID, page[1].ScanID)
	}

	if page, _ := repo.GetScanResults(ctx, 10, 99); page != nil {
		t.Errorf("offset past end should return nil, got %d results", len(page))
	}
}

func TestMemoryRepository_searchAndFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Now().UTC()
	_ = repo.SaveScanResult(ctx, mustResult(t, "u1", urlTarget("https://shop.example.com/"), 0, now))
	_ = repo.SaveScanResult(ctx, mustResult(t, "u2", urlTarget("https://bank.example.org/"), -60, now))
	_ = repo.SaveScanResult(ctx, mustResult(t, "e1", target.Target{Kind: target.KindEmail, Value: "user@example.com"}, 0, now))

	found, _ := repo.SearchScanResults(ctx, "EXAMPLE.COM")
	if len(found) != 2 {
		t.Errorf("search matched %d results, want 2", len(found))
	}

	risky, _ := repo.GetScanResultsByStatus(ctx, scoring.StatusRisk)
	if len(risky) != 1 || risky[0].ScanID != "u2" {
		t.Errorf("by status = %v, want [u2]", risky)
	}

	emails, _ := repo.GetScanResultsByKind(ctx, target.KindEmail)
	if len(emails) != 1 || emails[0].ScanID != "e1" {
		t.Errorf("by kind = %v, want [e1]", emails)
	}
}

func TestMemoryRepository_deletes(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	tgt := urlTarget("https://example.com/")
	now := time.Now().UTC()
	_ = repo.SaveScanResult(ctx, mustResult(t, "a", tgt, 0, now.Add(-2*time.Hour)))
	_ = repo.SaveScanResult(ctx, mustResult(t, "b", tgt, 0, now))
	_ = repo.SaveScanResult(ctx, mustResult(t, "c", urlTarget("https://other.com/"), 0, now))

	ok, err := repo.DeleteByID(ctx, "c")
	if err != nil || !ok {
		t.Fatalf("DeleteByID = %v, %v", ok, err)
	}
	if ok, _ := repo.DeleteByID(ctx, "c"); ok {
		t.Error("second delete of same id should report false")
	}

	if n, _ := repo.DeleteByTarget(ctx, tgt); n != 2 {
		t.Errorf("DeleteByTarget removed %d, want 2", n)
	}
	if n, _ := repo.GetScanResultCount(ctx); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

func TestMemoryRepository_deleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Now().UTC()
	_ = repo.SaveScanResult(ctx, mustResult(t, "old", urlTarget("https://a.com/"), 0, now.Add(-48*time.Hour)))
	_ = repo.SaveScanResult(ctx, mustResult(t, "new", urlTarget("https://b.com/"), 0, now))

	n, err := repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	if _, err := repo.GetScanResultByID(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Error("old result should be gone")
	}
	if _, err := repo.GetScanResultByID(ctx, "new"); err != nil {
		t.Errorf("new result should survive: %v", err)
	}
}

func TestMemoryRepository_hasRecentScan(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	tgt := urlTarget("https://example.com/")
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	_ = repo.SaveScanResult(ctx, mustResult(t, "a", tgt, 0, fixed.Add(-3*time.Minute)))

	if ok, _ := repo.HasRecentScan(ctx, tgt, 5*time.Minute); !ok {
		t.Error("scan 3m old should count as recent within 5m")
	}
	if ok, _ := repo.HasRecentScan(ctx, tgt, 2*time.Minute); ok {
		t.Error("scan 3m old should not count within 2m")
	}
	if ok, _ := repo.HasRecentScan(ctx, urlTarget("https://other.com/"), time.Hour); ok {
		t.Error("unscanned target reported recent")
	}
}
