package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExam_EffectiveStatusAt(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	exam := &Exam{Status: ExamStatusPublished, StartTime: start, EndTime: end}

	tests := []struct {
		name string
		now  time.Time
		want EffectiveStatus
	}{
		{"before window", start.Add(-time.Minute), EffectiveUpcoming},
		{"exactly at start", start, EffectiveOngoing},
		{"inside window", start.Add(time.Hour), EffectiveOngoing},
		{"exactly at end", end, EffectiveCompleted},
		{"after window", end.Add(time.Minute), EffectiveCompleted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, exam.EffectiveStatusAt(tc.now))
		})
	}
}

func TestExam_EffectiveStatusStoredCompletedWins(t *testing.T) {
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)

	exam := &Exam{Status: ExamStatusCompleted, StartTime: start, EndTime: end}
	// Even mid-window, a stored COMPLETED is terminal.
	require.Equal(t, EffectiveCompleted, exam.EffectiveStatusAt(time.Now()))
}

func TestExam_EffectiveStatusOverridesStaleStoredStatus(t *testing.T) {
	start := time.Now().Add(-2 * time.Hour)
	end := time.Now().Add(-time.Hour)

	// Stored ONGOING but the window has passed: the clock decides.
	exam := &Exam{Status: ExamStatusOngoing, StartTime: start, EndTime: end}
	require.Equal(t, EffectiveCompleted, exam.EffectiveStatusAt(time.Now()))
}
