package scoring

import (
	"testing"
	"time"

	"github.com/safecheck/safecheck/internal/target"
)

func TestStatusFromScore_boundaries(t *testing.T) {
	tests := []struct {
		score int
		want  Status
	}{
		{0, StatusRisk},
		{59, StatusRisk},
		{60, StatusCaution},
		{84, StatusCaution},
		{85, StatusSafe},
		{100, StatusSafe},
	}
	for _, tt := range tests {
		if got := StatusFromScore(tt.score); got != tt.want {
			t.Errorf("StatusFromScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestStatusFromScore_totalOverRange(t *testing.T) {
	for s := 0; s <= 100; s++ {
		switch StatusFromScore(s) {
		case StatusSafe, StatusCaution, StatusRisk:
		default:
			t.Fatalf("StatusFromScore(%d) produced an unknown status", s)
		}
	}
}

func TestNewReason_validation(t *testing.T) {
	tests := []struct {
		name          string
		code, message string
		delta         int
		wantErr       bool
	}{
		{"valid", "NO_HTTPS", "no https", -30, false},
		{"blank code", "", "msg", 0, true},
		{"blank message", "CODE", "  ", 0, true},
		{"delta too low", "CODE", "msg", -101, true},
		{"delta too high", "CODE", "msg", 101, true},
		{"delta at bounds", "CODE", "msg", 100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReason(tt.code, tt.message, tt.delta)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewReason(%q,%q,%d) err=%v, wantErr=%v", tt.code, tt.message, tt.delta, err, tt.wantErr)
			}
		})
	}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name   string
		deltas []int
		want   int
	}{
		{"empty", nil, 100},
		{"single negative", []int{-30}, 70},
		{"clamps low", []int{-100, -40}, 0},
		{"clamps high", []int{10, 20}, 100},
		{"mixed", []int{-40, -25, 10}, 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rs []Reason
			for _, d := range tt.deltas {
				rs = append(rs, MustReason("C", "m", d))
			}
			if got := Compute(rs); got != tt.want {
				t.Errorf("Compute(%v) = %d, want %d", tt.deltas, got, tt.want)
			}
		})
	}
}

func TestTopReasons_orderAndTieBreak(t *testing.T) {
	rs := []Reason{
		MustReason("A", "m", -10),
		MustReason("B", "m", 25),
		MustReason("C", "m", -25),
		MustReason("D", "m", 5),
	}
	top := TopReasons(rs, 3)
	if len(top) != 3 {
		t.Fatalf("len = %d, want 3", len(top))
	}
	// |25| ties: B appears before C because B came first.
	if top[0].Code != "B" || top[1].Code != "C" || top[2].Code != "A" {
		t.Errorf("order = %s,%s,%s; want B,C,A", top[0].Code, top[1].Code, top[2].Code)
	}
}

func TestNewScanResult_invariants(t *testing.T) {
	tgt := target.Target{Kind: target.KindURL, Value: "https://example.com/"}

	if _, err := NewScanResult(tgt, nil, nil); err == nil {
		t.Error("empty reasons must be rejected")
	}

	r, err := NewScanResult(tgt, []Reason{MustReason("NO_HTTPS", "no https", -30)}, map[string]string{"k": "v"})
	if err != nil {
		t.Fatal(err)
	}
	if r.Score != 70 {
		t.Errorf("score = %d, want 70", r.Score)
	}
	if r.Status != StatusFromScore(r.Score) {
		t.Errorf("status %s inconsistent with score %d", r.Status, r.Score)
	}
	if r.ScanID == "" {
		t.Error("scan id must be assigned")
	}
	if r.TimestampUTC.IsZero() {
		t.Error("timestamp must be set")
	}
}

func TestNewScanResult_copiesInputs(t *testing.T) {
	tgt := target.Target{Kind: target.KindEmail, Value: "a@example.com"}
	reasons := []Reason{MustReason("X", "m", 0)}
	meta := map[string]string{"k": "v"}

	r, err := NewScanResult(tgt, reasons, meta)
	if err != nil {
		t.Fatal(err)
	}

	reasons[0] = MustReason("MUTATED", "m", -50)
	meta["k"] = "mutated"

	if r.Reasons[0].Code != "X" {
		t.Error("result shares reason slice with caller")
	}
	if r.Metadata["k"] != "v" {
		t.Error("result shares metadata map with caller")
	}
}

func TestRestore_rejectsMismatchedStatus(t *testing.T) {
	tgt := target.Target{Kind: target.KindURL, Value: "https://example.com/"}
	rs := []Reason{MustReason("X", "m", 0)}

	if _, err := Restore("id", tgt, 90, StatusRisk, rs, nil, time.Now()); err == nil {
		t.Error("status RISK with score 90 must be rejected")
	}
	if _, err := Restore("id", tgt, 150, StatusSafe, rs, nil, time.Now()); err == nil {
		t.Error("score above 100 must be rejected")
	}
	if _, err := Restore("id", tgt, 90, StatusSafe, nil, nil, time.Now()); err == nil {
		t.Error("empty reasons must be rejected")
	}
	if _, err := Restore("id", tgt, 90, StatusSafe, rs, nil, time.Now()); err != nil {
		t.Errorf("consistent restore failed: %v", err)
	}
}
