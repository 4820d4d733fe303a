package attendance

import (
	"math"
	"testing"
)

func TestBuildStudentAttendance(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		attended  int
		wantPct   float64
		wantGrade float64
	}{
		{name: "three of four", total: 4, attended: 3, wantPct: 75, wantGrade: 3.75},
		{name: "perfect", total: 10, attended: 10, wantPct: 100, wantGrade: 5},
		{name: "none attended", total: 8, attended: 0, wantPct: 0, wantGrade: 0},
		{name: "one of three", total: 3, attended: 1, wantPct: 33.33, wantGrade: 1.67},
		{name: "two of three", total: 3, attended: 2, wantPct: 66.67, wantGrade: 3.33},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := buildStudentAttendance(905001234, "Ada Lovelace", tc.total, tc.attended)
			if got.StudentID != 905001234 || got.StudentName != "Ada Lovelace" {
				t.Fatalf("identity fields not carried: %+v", got)
			}
			if got.TotalSessions != tc.total || got.AttendedSessions != tc.attended {
				t.Fatalf("counts not carried: %+v", got)
			}
			if got.AttendancePercentage != tc.wantPct {
				t.Fatalf("expected percentage %v, got %v", tc.wantPct, got.AttendancePercentage)
			}
			if got.GradeContribution != tc.wantGrade {
				t.Fatalf("expected grade %v, got %v", tc.wantGrade, got.GradeContribution)
			}
		})
	}
}

func TestClampHistoryLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "zero takes default", limit: 0, want: defaultHistoryLimit},
		{name: "negative takes default", limit: -5, want: defaultHistoryLimit},
		{name: "in range passes through", limit: 5, want: 5},
		{name: "exactly the cap", limit: maxHistoryLimit, want: maxHistoryLimit},
		{name: "just above the cap", limit: maxHistoryLimit + 1, want: maxHistoryLimit},
		{name: "absurdly large", limit: math.MaxInt, want: maxHistoryLimit},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := clampHistoryLimit(tc.limit)
			if got != tc.want {
				t.Fatalf("clampHistoryLimit(%d) = %d, want %d", tc.limit, got, tc.want)
			}
			// The result sizes a slice capacity hint, so it must always
			// be safe to allocate.
			_ = make([]HistoryEntry, 0, got)
		})
	}
}

func TestAveragePercentage(t *testing.T) {
	tests := []struct {
		name string
		pcts []float64
		want float64
	}{
		{name: "empty list", pcts: nil, want: 0},
		{name: "single student", pcts: []float64{75}, want: 75},
		{name: "mixed", pcts: []float64{100, 50}, want: 75},
		{name: "rounded mean", pcts: []float64{100, 100, 50}, want: 83.33},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			students := make([]StudentAttendance, 0, len(tc.pcts))
			for _, p := range tc.pcts {
				students = append(students, StudentAttendance{AttendancePercentage: p})
			}
			if got := averagePercentage(students); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
