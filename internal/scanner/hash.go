package scanner

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/safecheck/safecheck/internal/collector"
	"github.com/safecheck/safecheck/internal/scanerr"
	"github.com/safecheck/safecheck/internal/scoring"
	"github.com/safecheck/safecheck/internal/target"
	"go.uber.org/zap"
)

var sha256Re = regexp.MustCompile(`^[0-9A-F]{64}$`)

// multiSourceThreshold is the minimum number of agreeing intel sources
// for a benign verdict to earn a positive delta.
const multiSourceThreshold = 2

// HashScanner analyzes SHA-256 file hash targets against the
// threat-intelligence reputation source. Format is a mandatory gate.
type HashScanner struct {
	deps *Deps
}

// NewHashScanner creates the file-hash pipeline.
func NewHashScanner(deps *Deps) *HashScanner {
	return &HashScanner{deps: deps}
}

// Info implements Scanner.
func (s *HashScanner) Info() Info {
	return Info{
		Name:         "filehash-scanner",
		Version:      "1.0.0",
		Capabilities: []string{"sha256", "reputation"},
	}
}

// Scan implements Scanner.
func (s *HashScanner) Scan(ctx context.Context, t target.Target) (*scoring.ScanResult, error) {
	t = target.Normalize(t)
	if t.Kind != target.KindFileHash {
		return nil, scanerr.Newf(scanerr.CodeInvalidInput, "hash scanner received %s target", t.Kind)
	}

	list := newReasonList()

	if !sha256Re.MatchString(t.Value) {
		list.add(ReasonInvalidSyntax, "value is not a 64-character SHA-256 hex digest", -100)
		return scoring.NewScanResult(t, list.reasons, list.meta)
	}

	var report *collector.HashReport
	err := s.deps.guarded(ctx, sourceReputation, func(ctx context.Context) error {
		r, err := s.deps.Reputation.LookupHash(ctx, t.Value)
		if err != nil {
			return err
		}
		report = r
		return nil
	})

	w := s.deps.Weights
	switch {
	case err != nil:
		list.inconclusive(ReasonRepInconclusive, "hash reputation could not be checked", err)
	case report.Verdict == collector.VerdictMalicious:
		msg := "hash is known malicious"
		if report.ThreatLabel != "" {
			msg = fmt.Sprintf("hash is known malicious (%s)", report.ThreatLabel)
		}
		list.add(ReasonKnownMalicious, msg, w.KnownMalicious)
		list.note("threat_label", report.ThreatLabel)
		list.note("intel_sources", strconv.Itoa(report.Sources))
	case report.Verdict == collector.VerdictBenign && report.Sources >= multiSourceThreshold:
		list.add(ReasonConfirmedBenign,
			fmt.Sprintf("confirmed benign by %d sources", report.Sources), w.ConfirmedBenign)
		list.note("intel_sources", strconv.Itoa(report.Sources))
	default:
		// Neutral but explicit: the non-empty-reasons invariant holds
		// even for a hash nobody has seen before.
		list.add(ReasonUnknownHash, "unknown hash, no reputation history", 0)
	}

	result, err := scoring.NewScanResult(t, list.reasons, list.meta)
	if err != nil {
		return nil, err
	}

	s.deps.Logger.Info("hash scan complete",
		zap.String("hash", t.Value[:12]),
		zap.Int("score", result.Score),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}
