package attendance

import "math"

// DefaultMaxGrade is the attendance share of the final grade (5%).
const DefaultMaxGrade = 5.0

// ApplyGradingRule converts an attendance percentage into a grade contribution
// capped at maxGrade. The percentage is clamped to [0, 100] first so malformed
// upstream data (more check-ins than sessions, negative counts) can never push
// the grade outside [0, maxGrade]. maxGrade <= 0 falls back to DefaultMaxGrade.
func ApplyGradingRule(percentage, maxGrade float64) float64 {
	if maxGrade <= 0 {
		maxGrade = DefaultMaxGrade
	}
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	return round2(percentage / 100 * maxGrade)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
