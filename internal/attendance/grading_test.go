package attendance

import "testing"

func TestApplyGradingRule(t *testing.T) {
	tests := []struct {
		name       string
		percentage float64
		maxGrade   float64
		want       float64
	}{
		{name: "zero", percentage: 0, maxGrade: 5, want: 0},
		{name: "quarter", percentage: 25, maxGrade: 5, want: 1.25},
		{name: "half", percentage: 50, maxGrade: 5, want: 2.5},
		{name: "three quarters", percentage: 75, maxGrade: 5, want: 3.75},
		{name: "full", percentage: 100, maxGrade: 5, want: 5},
		{name: "above range clamps to max", percentage: 150, maxGrade: 5, want: 5},
		{name: "below range clamps to zero", percentage: -10, maxGrade: 5, want: 0},
		{name: "rounds to two decimals", percentage: 12.5, maxGrade: 5, want: 0.63},
		{name: "custom max grade", percentage: 50, maxGrade: 10, want: 5},
		{name: "zero max grade falls back to default", percentage: 100, maxGrade: 0, want: DefaultMaxGrade},
		{name: "negative max grade falls back to default", percentage: 50, maxGrade: -1, want: 2.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ApplyGradingRule(tc.percentage, tc.maxGrade)
			if got != tc.want {
				t.Fatalf("ApplyGradingRule(%v, %v) = %v, want %v", tc.percentage, tc.maxGrade, got, tc.want)
			}
		})
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{66.666666, 66.67},
		{33.333333, 33.33},
		{0.625, 0.63},
		{0, 0},
		{100, 100},
	}

	for _, tc := range tests {
		if got := round2(tc.in); got != tc.want {
			t.Fatalf("round2(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
