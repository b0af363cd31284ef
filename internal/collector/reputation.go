package collector

import (
	"context"
	"strings"
	"sync"
	"time"
)

// StaticReputationSource is an in-process ReputationSource seeded from
// configuration or feed snapshots. It stands in for the external
// threat-intelligence collaborator; hashes are keyed uppercase.
type StaticReputationSource struct {
	mu      sync.RWMutex
	reports map[string]*HashReport
}

// NewStaticReputationSource creates an empty source.
func NewStaticReputationSource() *StaticReputationSource {
	return &StaticReputationSource{reports: make(map[string]*HashReport)}
}

// AddMalicious marks a hash as known malicious with the given family
// label and source agreement count.
func (s *StaticReputationSource) AddMalicious(sha256, label string, sources int) {
	s.add(sha256, &HashReport{
		Verdict:     VerdictMalicious,
		Sources:     sources,
		ThreatLabel: label,
		FirstSeen:   time.Now().UTC(),
		LastSeen:    time.Now().UTC(),
	})
}

// AddBenign marks a hash as confirmed benign by the given number of sources.
func (s *StaticReputationSource) AddBenign(sha256 string, sources int) {
	s.add(sha256, &HashReport{
		Verdict:   VerdictBenign,
		Sources:   sources,
		FirstSeen: time.Now().UTC(),
		LastSeen:  time.Now().UTC(),
	})
}

func (s *StaticReputationSource) add(sha256 string, r *HashReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[strings.ToUpper(strings.TrimSpace(sha256))] = r
}

// LookupHash implements ReputationSource. Unlisted hashes come back
// with VerdictUnknown rather than an error.
func (s *StaticReputationSource) LookupHash(_ context.Context, sha256 string) (*HashReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.reports[strings.ToUpper(strings.TrimSpace(sha256))]; ok {
		cp := *r
		return &cp, nil
	}
	return &HashReport{Verdict: VerdictUnknown}, nil
}
