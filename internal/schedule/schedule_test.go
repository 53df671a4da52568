package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classtrack/quizengine/internal/domain"
	"github.com/classtrack/quizengine/internal/schedule"
)

var quizDay = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 14, hour, minute, 0, 0, time.UTC)
}

func makeQuiz(from, to string) domain.Quiz {
	return domain.Quiz{
		QuizID: "q1",
		Date:   quizDay,
		From:   from,
		To:     to,
	}
}

func TestEvaluate_WrongDay(t *testing.T) {
	q := makeQuiz("", "")

	a := schedule.Evaluate(q, quizDay.AddDate(0, 0, -1).Add(12*time.Hour))
	require.False(t, a.Accessible)
	require.Equal(t, domain.AccessNotStarted, a.Status)
	require.NotEmpty(t, a.Reason)

	a = schedule.Evaluate(q, quizDay.AddDate(0, 0, 1).Add(12*time.Hour))
	require.False(t, a.Accessible)
	require.Equal(t, domain.AccessExpired, a.Status)
	require.NotEmpty(t, a.Reason)
}

func TestEvaluate_NoWindow(t *testing.T) {
	q := makeQuiz("", "")

	for _, now := range []time.Time{at(0, 0), at(12, 30), at(23, 59)} {
		a := schedule.Evaluate(q, now)
		require.True(t, a.Accessible, "should be open all day at %s", now)
		require.Equal(t, domain.AccessReady, a.Status)
	}
}

func TestEvaluate_FromOnly(t *testing.T) {
	q := makeQuiz("09:00", "")

	tests := map[string]struct {
		now        time.Time
		accessible bool
		status     domain.AccessStatus
	}{
		"one minute before open": {at(8, 59), false, domain.AccessNotStarted},
		"exactly at open":        {at(9, 0), true, domain.AccessActiveWindow},
		"end of day":             {at(23, 59), true, domain.AccessActiveWindow},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			a := schedule.Evaluate(q, tt.now)
			require.Equal(t, tt.accessible, a.Accessible)
			require.Equal(t, tt.status, a.Status)
		})
	}
}

func TestEvaluate_BoundedWindow(t *testing.T) {
	q := makeQuiz("09:00", "10:00")

	tests := map[string]struct {
		now        time.Time
		accessible bool
		status     domain.AccessStatus
	}{
		"one minute before open":  {at(8, 59), false, domain.AccessNotStarted},
		"exactly at open":         {at(9, 0), true, domain.AccessActiveWindow},
		"inside window":           {at(9, 30), true, domain.AccessActiveWindow},
		"exactly at close":        {at(10, 0), true, domain.AccessActiveWindow},
		"one minute after close":  {at(10, 1), false, domain.AccessExpired},
		"well after window close": {at(15, 0), false, domain.AccessExpired},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			a := schedule.Evaluate(q, tt.now)
			require.Equal(t, tt.accessible, a.Accessible)
			require.Equal(t, tt.status, a.Status)
		})
	}
}

func TestWindowOpen(t *testing.T) {
	require.True(t, schedule.WindowOpen(makeQuiz("", "")).IsZero())
	require.Equal(t, at(9, 0), schedule.WindowOpen(makeQuiz("09:00", "10:00")))
}
