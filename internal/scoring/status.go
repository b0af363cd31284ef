package scoring

// Status is the coarse verdict bucket derived from a scan score.
type Status string

const (
	StatusSafe    Status = "SAFE"
	StatusCaution Status = "CAUTION"
	StatusRisk    Status = "RISK"
)

// StatusFromScore maps a 0-100 score to its verdict bucket:
//
//	score >= 85        → SAFE
//	60 <= score < 85   → CAUTION
//	score < 60         → RISK
func StatusFromScore(score int) Status {
	switch {
	case score >= 85:
		return StatusSafe
	case score >= 60:
		return StatusCaution
	default:
		return StatusRisk
	}
}

// ParseStatus parses a stored status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusSafe, StatusCaution, StatusRisk:
		return Status(s), true
	default:
		return "", false
	}
}
