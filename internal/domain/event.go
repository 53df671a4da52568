package domain

import "time"

const (
	EventNameAttemptStarted     = "attempt.started"
	EventNameAttemptSubmitted   = "attempt.submitted"
	EventNameIntegrityViolation = "attempt.integrity_violation"
)

type EventAttemptStarted struct {
	QuizID    string
	StudentID string
	Deadline  time.Time
	Resumed   bool
}

func (EventAttemptStarted) Name() string { return EventNameAttemptStarted }

type EventAttemptSubmitted struct {
	Submission Submission
}

func (EventAttemptSubmitted) Name() string { return EventNameAttemptSubmitted }

type EventIntegrityViolation struct {
	QuizID    string
	StudentID string
	Kind      string
	Time      time.Time
}

func (EventIntegrityViolation) Name() string { return EventNameIntegrityViolation }
