package grading_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classtrack/quizengine/internal/domain"
	"github.com/classtrack/quizengine/internal/grading"
)

func makeQuiz() domain.Quiz {
	return domain.Quiz{
		QuizID:     "q1",
		Duration:   30 * time.Minute,
		TotalMarks: 10,
		Questions: []domain.Question{
			{QuestionID: "qs1", Options: []string{"a", "b", "c"}, CorrectAnswer: 1, Marks: 2},
			{QuestionID: "qs2", Options: []string{"a", "b", "c"}, CorrectAnswer: 0, Marks: 3},
			{QuestionID: "qs3", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 3, Marks: 5},
		},
	}
}

func TestGrade(t *testing.T) {
	tests := map[string]struct {
		answers     map[string]int
		wantMarks   int
		wantAnswers []int
		wantPct     string
	}{
		"correct, incorrect, unanswered": {
			answers:     map[string]int{"qs1": 1, "qs2": 2},
			wantMarks:   2,
			wantAnswers: []int{1, 2, domain.NoAnswer},
			wantPct:     "20.00",
		},
		"all correct": {
			answers:     map[string]int{"qs1": 1, "qs2": 0, "qs3": 3},
			wantMarks:   10,
			wantAnswers: []int{1, 0, 3},
			wantPct:     "100.00",
		},
		"no answers": {
			answers:     map[string]int{},
			wantMarks:   0,
			wantAnswers: []int{domain.NoAnswer, domain.NoAnswer, domain.NoAnswer},
			wantPct:     "0.00",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := grading.Grade(makeQuiz(), tt.answers)
			require.Equal(t, tt.wantMarks, r.Marks)
			require.Equal(t, tt.wantAnswers, r.Answers)
			require.Equal(t, tt.wantPct, r.Percentage.StringFixed(2))
		})
	}
}

func TestGrade_AnswersArePositional(t *testing.T) {
	// The persistence collaborator stores a flat ordered sequence; the
	// result must align with the quiz's question order regardless of map
	// iteration order.
	r := grading.Grade(makeQuiz(), map[string]int{"qs3": 3, "qs1": 0})
	require.Equal(t, []int{0, domain.NoAnswer, 3}, r.Answers)
}

func TestReconcile(t *testing.T) {
	q := makeQuiz()

	sub := domain.Submission{
		QuizID:  "q1",
		Answers: []int{1, domain.NoAnswer, 2},
	}

	got := grading.Reconcile(q, sub)
	require.Equal(t, map[string]int{"qs1": 1, "qs3": 2}, got)
}

func TestReconcile_ShortAnswerArray(t *testing.T) {
	q := makeQuiz()

	got := grading.Reconcile(q, domain.Submission{Answers: []int{2}})
	require.Equal(t, map[string]int{"qs1": 2}, got)
}
