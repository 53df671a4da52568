package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/classtrack/quizengine/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	SubmissionResult struct {
		QuizID     string `json:"quiz_id"`
		StudentID  string `json:"student_id"`
		Marks      int    `json:"marks"`
		Percentage string `json:"percentage"`
		Status     string `json:"status"`
	}

	ViolationReport struct {
		QuizID    string `json:"quiz_id"`
		StudentID string `json:"student_id"`
		Kind      string `json:"kind"`
	}
)

// PublishAttemptSubmitted notifies the student's channel and the quiz-wide
// channel (teacher dashboards) that an attempt finished.
func (a *API) PublishAttemptSubmitted(ctx context.Context, e domain.EventAttemptSubmitted) error {
	sub := e.Submission

	data := SubmissionResult{
		QuizID:     sub.QuizID,
		StudentID:  sub.StudentID,
		Marks:      sub.Marks,
		Percentage: sub.Percentage.StringFixed(2),
		Status:     string(sub.Status),
	}

	channels := []string{
		fmt.Sprintf("%s:student:%s", a.prefix, sub.StudentID),
		fmt.Sprintf("%s:quiz:%s", a.prefix, sub.QuizID),
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, ch := range channels {
		ch := ch
		eg.Go(func() error {
			return a.publishNotification(ctx, ch, e.Name(), data)
		})
	}

	return eg.Wait()
}

// PublishIntegrityViolation notifies the quiz-wide channel so proctoring
// views can surface the event.
func (a *API) PublishIntegrityViolation(ctx context.Context, e domain.EventIntegrityViolation) error {
	data := ViolationReport{
		QuizID:    e.QuizID,
		StudentID: e.StudentID,
		Kind:      e.Kind,
	}

	return a.publishNotification(ctx, fmt.Sprintf("%s:quiz:%s", a.prefix, e.QuizID), e.Name(), data)
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}
