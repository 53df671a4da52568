package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Quiz is the immutable definition of a timed quiz. It never changes for the
// duration of an attempt.
type Quiz struct {
	QuizID   string
	Title    string
	Duration time.Duration

	// Date is the calendar day the quiz is attemptable, at midnight in the
	// service location. From and To optionally bound the access window on
	// that day as "HH:MM" strings; empty means unset.
	Date time.Time
	From string
	To   string

	TotalMarks int
	Questions  []Question
}

type Question struct {
	QuestionID  string
	Title       string
	Description string
	Options     []string
	// CorrectAnswer indexes into Options.
	CorrectAnswer int
	Marks         int
}

// Validate checks the structural invariants of a quiz definition: every
// correct answer indexes into its options, marks are positive, and marks sum
// to TotalMarks.
func (q Quiz) Validate() error {
	if q.Duration <= 0 {
		return fmt.Errorf("quiz %s: non-positive duration", q.QuizID)
	}

	sum := 0
	for _, qs := range q.Questions {
		if qs.CorrectAnswer < 0 || qs.CorrectAnswer >= len(qs.Options) {
			return fmt.Errorf("quiz %s: question %s: correct answer %d out of range", q.QuizID, qs.QuestionID, qs.CorrectAnswer)
		}
		if qs.Marks <= 0 {
			return fmt.Errorf("quiz %s: question %s: non-positive marks", q.QuizID, qs.QuestionID)
		}
		sum += qs.Marks
	}

	if sum != q.TotalMarks {
		return fmt.Errorf("quiz %s: question marks sum %d != total marks %d", q.QuizID, sum, q.TotalMarks)
	}

	return nil
}

// AttemptStatus is the lifecycle state of one student's attempt at a quiz.
type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "not-started"
	AttemptReady      AttemptStatus = "ready"
	AttemptActive     AttemptStatus = "active"
	AttemptTimeUp     AttemptStatus = "time-up"
	AttemptExpired    AttemptStatus = "expired"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// Terminal reports whether no further transition can leave the status.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptSubmitted || s == AttemptExpired
}

type SubmissionStatus string

const (
	// SubmissionManual marks a submission the student triggered explicitly.
	SubmissionManual SubmissionStatus = "submitted"
	// SubmissionForced marks a submission triggered by timeout or an
	// integrity violation.
	SubmissionForced SubmissionStatus = "auto-submitted"
)

// NoAnswer is the sentinel recorded for a question the student never
// answered. Submission answer arrays are positional, aligned with the quiz's
// question order.
const NoAnswer = -1

// Submission is the durable record of a finished attempt.
type Submission struct {
	SubmissionID string
	QuizID       string
	StudentID    string
	// Answers holds the selected option index per question, in quiz
	// question order, NoAnswer where the student left one blank.
	Answers    []int
	Marks      int
	Percentage decimal.Decimal
	Status     SubmissionStatus
	SubmitTime time.Time
}

// AccessStatus classifies where "now" falls relative to a quiz's
// accessibility window.
type AccessStatus string

const (
	AccessNotStarted   AccessStatus = "not-started"
	AccessReady        AccessStatus = "ready"
	AccessActiveWindow AccessStatus = "active-window"
	AccessExpired      AccessStatus = "expired"
)

// Access is the decision of the accessibility evaluator.
type Access struct {
	Accessible bool
	Status     AccessStatus
	Reason     string
}
