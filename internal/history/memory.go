package history

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/safecheck/safecheck/internal/scoring"
	"github.com/safecheck/safecheck/internal/target"
)

// MemoryRepository is an in-memory, thread-safe Repository. Results are
// held newest-first; stored values are copies so callers cannot mutate
// repository state through retained pointers.
type MemoryRepository struct {
	mu      sync.RWMutex
	results []*scoring.ScanResult // newest first
	byID    map[string]*scoring.ScanResult

	// now is swapped in tests that need a fixed clock for HasRecentScan.
	now func() time.Time
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID: make(map[string]*scoring.ScanResult),
		now:  time.Now,
	}
}

func copyResult(r *scoring.ScanResult) *scoring.ScanResult {
	cp := *r
	cp.Reasons = append([]scoring.Reason(nil), r.Reasons...)
	cp.Metadata = make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		cp.Metadata[k] = v
	}
	return &cp
}

// SaveScanResult implements Repository. Last write wins for repeated
// scans of the same target.
func (m *MemoryRepository) SaveScanResult(_ context.Context, r *scoring.ScanResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := copyResult(r)
	m.byID[cp.ScanID] = cp
	m.results = append(m.results, cp)
	// Keep newest-first order even if timestamps arrive out of order.
	sort.SliceStable(m.results, func(i, j int) bool {
		return m.results[i].TimestampUTC.After(m.results[j].TimestampUTC)
	})
	return nil
}

// GetScanResultByID implements Repository.
func (m *MemoryRepository) GetScanResultByID(_ context.Context, scanID string) (*scoring.ScanResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byID[scanID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyResult(r), nil
}

// GetLatestScanForTarget implements Repository. Matching is exact on
// the normalized target.
func (m *MemoryRepository) GetLatestScanForTarget(_ context.Context, t target.Target) (*scoring.ScanResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.results {
		if r.Target == t {
			return copyResult(r), nil
		}
	}
	return nil, ErrNotFound
}

// GetAllScanResults implements Repository.
func (m *MemoryRepository) GetAllScanResults(_ context.Context) ([]*scoring.ScanResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*scoring.ScanResult, len(m.results))
	for i, r := range m.results {
		out[i] = copyResult(r)
	}
	return out, nil
}

// GetScanResults implements Repository.
func (m *MemoryRepository) GetScanResults(_ context.Context, limit, offset int) ([]*scoring.ScanResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(m.results) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.results) {
		end = len(m.results)
	}
	out := make([]*scoring.ScanResult, 0, end-offset)
	for _, r := range m.results[offset:end] {
		out = append(out, copyResult(r))
	}
	return out, nil
}

// SearchScanResults implements Repository with a case-insensitive
// substring match on the target value.
func (m *MemoryRepository) SearchScanResults(_ context.Context, query string) ([]*scoring.ScanResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	query = strings.ToLower(query)
	var out []*scoring.ScanResult
	for _, r := range m.results {
		if strings.Contains(strings.ToLower(r.Target.Value), query) {
			out = append(out, copyResult(r))
		}
	}
	return out, nil
}

// GetScanResultsByStatus implements Repository.
func (m *MemoryRepository) GetScanResultsByStatus(_ context.Context, status scoring.Status) ([]*scoring.ScanResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*scoring.ScanResult
	for _, r := range m.results {
		if r.Status == status {
			out = append(out, copyResult(r))
		}
	}
	return out, nil
}

// GetScanResultsByKind implements Repository.
func (m *MemoryRepository) GetScanResultsByKind(_ context.Context, kind target.Kind) ([]*scoring.ScanResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*scoring.ScanResult
	for _, r := range m.results {
		if r.Target.Kind == kind {
			out = append(out, copyResult(r))
		}
	}
	return out, nil
}

// DeleteByID implements Repository.
func (m *MemoryRepository) DeleteByID(_ context.Context, scanID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[scanID]; !ok {
		return false, nil
	}
	delete(m.byID, scanID)
	m.results = deleteWhere(m.results, func(r *scoring.ScanResult) bool { return r.ScanID == scanID })
	return true, nil
}

// DeleteByTarget implements Repository.
func (m *MemoryRepository) DeleteByTarget(_ context.Context, t target.Target) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.results)
	m.results = deleteWhere(m.results, func(r *scoring.ScanResult) bool {
		if r.Target == t {
			delete(m.byID, r.ScanID)
			return true
		}
		return false
	})
	return before - len(m.results), nil
}

// DeleteAll implements Repository.
func (m *MemoryRepository) DeleteAll(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.results)
	m.results = nil
	m.byID = make(map[string]*scoring.ScanResult)
	return n, nil
}

// DeleteOlderThan implements Repository.
func (m *MemoryRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.results)
	m.results = deleteWhere(m.results, func(r *scoring.ScanResult) bool {
		if r.TimestampUTC.Before(cutoff) {
			delete(m.byID, r.ScanID)
			return true
		}
		return false
	})
	return before - len(m.results), nil
}

// GetScanResultCount implements Repository.
func (m *MemoryRepository) GetScanResultCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results), nil
}

// HasRecentScan implements Repository.
func (m *MemoryRepository) HasRecentScan(_ context.Context, t target.Target, within time.Duration) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := m.now().Add(-within)
	for _, r := range m.results {
		if r.Target == t && r.TimestampUTC.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func deleteWhere(rs []*scoring.ScanResult, match func(*scoring.ScanResult) bool) []*scoring.ScanResult {
	out := rs[:0]
	for _, r := range rs {
		if !match(r) {
			out = append(out, r)
		}
	}
	// Release tail references.
	for i := len(out); i < len(rs); i++ {
		rs[i] = nil
	}
	return out
}
