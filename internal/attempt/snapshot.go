package attempt

import (
	"github.com/classtrack/quizengine/internal/domain"
)

// QuestionState is the display state of one question in the view model.
type QuestionState string

const (
	// QuestionLocked renders before a session starts.
	QuestionLocked QuestionState = "locked"
	// QuestionAnswerable renders while the session is active.
	QuestionAnswerable QuestionState = "answerable"
	// QuestionCorrect and QuestionIncorrect render in review mode.
	QuestionCorrect    QuestionState = "correct"
	QuestionIncorrect  QuestionState = "incorrect"
	QuestionUnanswered QuestionState = "unanswered"
)

type QuestionView struct {
	QuestionID  string        `json:"question_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Options     []string      `json:"options"`
	Marks       int           `json:"marks"`
	Selected    int           `json:"selected"`
	State       QuestionState `json:"state"`
}

type SubmissionView struct {
	Marks      int    `json:"marks"`
	TotalMarks int    `json:"total_marks"`
	Percentage string `json:"percentage"`
	Status     string `json:"status"`
}

// Snapshot is the view model the surrounding application renders from.
type Snapshot struct {
	QuizID           string `json:"quiz_id"`
	Title            string `json:"title"`
	Status           string `json:"status"`
	Reason           string `json:"reason,omitempty"`
	RemainingSeconds int    `json:"remaining_seconds"`
	// FullscreenRequired and InputGuardsRequired tell the client shell to
	// request fullscreen and to install its copy/paste/context-menu and
	// leave-page guards while the session is active.
	FullscreenRequired  bool            `json:"fullscreen_required"`
	InputGuardsRequired bool            `json:"input_guards_required"`
	Questions           []QuestionView  `json:"questions"`
	Submission          *SubmissionView `json:"submission,omitempty"`
}

// Snapshot renders the current attempt state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := c.status == domain.AttemptActive

	s := Snapshot{
		QuizID:              c.quiz.QuizID,
		Title:               c.quiz.Title,
		Status:              string(c.status),
		Reason:              c.reason,
		RemainingSeconds:    c.remainingLocked(),
		FullscreenRequired:  active,
		InputGuardsRequired: active,
		Questions:           make([]QuestionView, 0, len(c.quiz.Questions)),
	}

	review := c.submission != nil

	for _, q := range c.quiz.Questions {
		qv := QuestionView{
			QuestionID:  q.QuestionID,
			Title:       q.Title,
			Description: q.Description,
			Options:     q.Options,
			Marks:       q.Marks,
			Selected:    domain.NoAnswer,
		}

		sel, answered := c.answers[q.QuestionID]
		if answered {
			qv.Selected = sel
		}

		switch {
		case c.status == domain.AttemptActive:
			qv.State = QuestionAnswerable
		case review && !answered:
			qv.State = QuestionUnanswered
		case review && sel == q.CorrectAnswer:
			qv.State = QuestionCorrect
		case review:
			qv.State = QuestionIncorrect
		default:
			qv.State = QuestionLocked
		}

		s.Questions = append(s.Questions, qv)
	}

	if review {
		s.Submission = &SubmissionView{
			Marks:      c.submission.Marks,
			TotalMarks: c.quiz.TotalMarks,
			Percentage: c.submission.Percentage.StringFixed(2),
			Status:     string(c.submission.Status),
		}
	}

	return s
}
