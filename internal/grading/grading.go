// Package grading computes the score of a finished attempt and reconciles a
// previously stored submission back into reviewable answers.
package grading

import (
	"github.com/shopspring/decimal"

	"github.com/classtrack/quizengine/internal/domain"
)

// Result is the graded outcome of one attempt.
type Result struct {
	// Marks awarded, bounded to [0, quiz.TotalMarks].
	Marks int
	// Percentage of TotalMarks achieved.
	Percentage decimal.Decimal
	// Answers holds the selected option per question in quiz question
	// order, domain.NoAnswer for questions left blank. The persistence
	// collaborator stores answers as a flat ordered sequence, so position
	// matters here, not question IDs.
	Answers []int
}

// Grade scores the captured answers against the quiz's answer key. A present
// and correct answer awards the question's marks, a present but wrong answer
// awards zero, and an absent answer records the sentinel and awards zero.
func Grade(q domain.Quiz, answers map[string]int) Result {
	r := Result{
		Answers: make([]int, 0, len(q.Questions)),
	}

	for _, qs := range q.Questions {
		sel, ok := answers[qs.QuestionID]
		if !ok {
			r.Answers = append(r.Answers, domain.NoAnswer)
			continue
		}

		r.Answers = append(r.Answers, sel)
		if sel == qs.CorrectAnswer {
			r.Marks += qs.Marks
		}
	}

	if r.Marks < 0 {
		r.Marks = 0
	}
	if r.Marks > q.TotalMarks {
		r.Marks = q.TotalMarks
	}

	r.Percentage = percentage(r.Marks, q.TotalMarks)

	return r
}

// Reconcile maps a stored submission back onto question IDs so a finished
// attempt renders in review mode. Answers beyond the quiz's question count
// are ignored; missing positions read as unanswered.
func Reconcile(q domain.Quiz, sub domain.Submission) map[string]int {
	answers := make(map[string]int, len(q.Questions))

	for i, qs := range q.Questions {
		if i >= len(sub.Answers) {
			break
		}
		if sub.Answers[i] == domain.NoAnswer {
			continue
		}
		answers[qs.QuestionID] = sub.Answers[i]
	}

	return answers
}

func percentage(marks, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}

	return decimal.NewFromInt(int64(marks)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}
