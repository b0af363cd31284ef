// Package scoring turns the reasons collected by a scan pipeline into
// a bounded score, a verdict status, and a ranked explanation list.
//
// Scoring starts from a perfect baseline of 100, applies every reason's
// signed delta, and clamps to [0,100]. The status is a pure function of
// the score. ScanResult construction enforces these relationships; a
// violation is a programming bug, not a recoverable condition.
package scoring

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safecheck/safecheck/internal/scanerr"
	"github.com/safecheck/safecheck/internal/target"
)

// BaseScore is the perfect-input starting score before deltas apply.
const BaseScore = 100

// Reason is one signed scoring factor. Immutable after construction.
type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Delta   int    `json:"delta"`
}

// NewReason validates and builds a Reason. Code and message must be
// non-blank and delta must lie in [-100,100].
func NewReason(code, message string, delta int) (Reason, error) {
	if strings.TrimSpace(code) == "" {
		return Reason{}, scanerr.New(scanerr.CodeValidationError, "reason code must not be blank")
	}
	if strings.TrimSpace(message) == "" {
		return Reason{}, scanerr.Newf(scanerr.CodeValidationError, "reason %s: message must not be blank", code)
	}
	if delta < -100 || delta > 100 {
		return Reason{}, scanerr.Newf(scanerr.CodeValidationError, "reason %s: delta %d out of range [-100,100]", code, delta)
	}
	return Reason{Code: code, Message: message, Delta: delta}, nil
}

// MustReason builds a Reason from constants and panics on invalid input.
// For use with compile-time-known codes only.
func MustReason(code, message string, delta int) Reason {
	r, err := NewReason(code, message, delta)
	if err != nil {
		panic(err)
	}
	return r
}

// Compute folds reasons into a final score: clamp(100 + Σdelta, 0, 100).
// The result is independent of reason order.
func Compute(reasons []Reason) int {
	score := BaseScore
	for _, r := range reasons {
		score += r.Delta
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// TopReasons returns up to n reasons ordered by |delta| descending.
// Ties keep their original collection order (stable sort), which is why
// pipelines must append reasons in evaluation order.
func TopReasons(reasons []Reason, n int) []Reason {
	ranked := make([]Reason, len(reasons))
	copy(ranked, reasons)
	sort.SliceStable(ranked, func(i, j int) bool {
		return abs(ranked[i].Delta) > abs(ranked[j].Delta)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ScanResult is the immutable outcome of one scan. Build it through
// NewScanResult only; direct construction bypasses the invariants.
type ScanResult struct {
	ScanID       string            `json:"scan_id"`
	Target       target.Target     `json:"target"`
	Score        int               `json:"score"`
	Status       Status            `json:"status"`
	Reasons      []Reason          `json:"reasons"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	TimestampUTC time.Time         `json:"timestamp_utc"`
}

// NewScanResult validates and builds a ScanResult. The score is derived
// from the reasons via Compute; the status from the score. Reasons must
// be non-empty; their order is preserved verbatim.
func NewScanResult(t target.Target, reasons []Reason, metadata map[string]string) (*ScanResult, error) {
	if len(reasons) == 0 {
		return nil, scanerr.New(scanerr.CodeValidationError, "scan result must carry at least one reason")
	}
	for _, r := range reasons {
		if _, err := NewReason(r.Code, r.Message, r.Delta); err != nil {
			return nil, err
		}
	}

	score := Compute(reasons)
	rs := make([]Reason, len(reasons))
	copy(rs, reasons)

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	return &ScanResult{
		ScanID:       uuid.NewString(),
		Target:       t,
		Score:        score,
		Status:       StatusFromScore(score),
		Reasons:      rs,
		Metadata:     meta,
		TimestampUTC: time.Now().UTC(),
	}, nil
}

// Restore rebuilds a ScanResult from persisted fields, re-checking the
// structural invariants. Used by repositories when scanning rows.
func Restore(scanID string, t target.Target, score int, status Status, reasons []Reason, metadata map[string]string, ts time.Time) (*ScanResult, error) {
	if scanID == "" {
		return nil, scanerr.New(scanerr.CodeValidationError, "scan id must not be blank")
	}
	if len(reasons) == 0 {
		return nil, scanerr.New(scanerr.CodeValidationError, "scan result must carry at least one reason")
	}
	if score < 0 || score > 100 {
		return nil, scanerr.Newf(scanerr.CodeValidationError, "score %d out of range [0,100]", score)
	}
	if status != StatusFromScore(score) {
		return nil, scanerr.Newf(scanerr.CodeValidationError, "status %s inconsistent with score %d", status, score)
	}
	return &ScanResult{
		ScanID:       scanID,
		Target:       t,
		Score:        score,
		Status:       status,
		Reasons:      reasons,
		Metadata:     metadata,
		TimestampUTC: ts,
	}, nil
}

// TopReasons returns the result's three highest-impact reasons.
func (r *ScanResult) TopReasons() []Reason {
	return TopReasons(r.Reasons, 3)
}
