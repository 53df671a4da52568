// Package attempt runs the timed quiz session state machine: start and
// resume, the one-second countdown, forced submission on timeout or
// integrity violation, manual submission, and reconciliation against a
// previously stored submission.
package attempt

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/classtrack/quizengine/internal/domain"
	"github.com/classtrack/quizengine/internal/errors"
	"github.com/classtrack/quizengine/internal/event"
	"github.com/classtrack/quizengine/internal/grading"
	"github.com/classtrack/quizengine/internal/integrity"
	"github.com/classtrack/quizengine/internal/schedule"
	"github.com/classtrack/quizengine/internal/store"
	"github.com/classtrack/quizengine/internal/telemetry"
)

// Source supplies quiz definitions and prior submissions.
type Source interface {
	FetchQuiz(ctx context.Context, quizID string) (*domain.Quiz, error)
	FetchPriorSubmission(ctx context.Context, quizID, studentID string) (*domain.Submission, error)
}

// Persister durably records a finished attempt.
type Persister interface {
	PersistSubmission(ctx context.Context, sub *domain.Submission) error
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// NewTicker returns a wall-clock Ticker. Tests substitute their own via
// Config.NewTickerFunc.
func NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// submitLatch makes submission at-most-once per attempt. The countdown tick
// and the integrity handlers are concurrent event sources; whichever
// acquires the latch first wins, the other is a no-op. A failed persistence
// releases the latch so the attempt stays recoverable.
type submitLatch int

const (
	latchNone submitLatch = iota
	latchSubmitting
	latchDone
)

type Config struct {
	Quiz      *domain.Quiz
	StudentID string
	// Prior short-circuits the whole session when the student already has
	// a stored submission.
	Prior *domain.Submission

	Store     store.Store
	Persister Persister
	EventBus  *event.Bus

	Now           func() time.Time
	NewTickerFunc func(d time.Duration) Ticker
}

// Controller owns one student's attempt at one quiz.
type Controller struct {
	quiz      *domain.Quiz
	studentID string

	st  store.Store
	ps  Persister
	eb  *event.Bus
	now func() time.Time
	tkf func(d time.Duration) Ticker

	mu         sync.Mutex
	status     domain.AttemptStatus
	reason     string
	answers    map[string]int
	deadline   time.Time
	latch      submitLatch
	watcher    *integrity.Watcher
	tickDone   chan struct{}
	submission *domain.Submission
}

// New builds a controller and settles its initial state: a prior submission
// renders in review mode, a persisted deadline resumes (or force-submits when
// it already passed), otherwise the accessibility evaluator decides.
func New(ctx context.Context, c Config) (*Controller, error) {
	if c.Quiz == nil {
		return nil, fmt.Errorf("attempt: quiz required")
	}
	if c.StudentID == "" {
		return nil, fmt.Errorf("attempt: student ID required")
	}
	if c.Store == nil || c.Persister == nil {
		return nil, fmt.Errorf("attempt: store and persister required")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewTickerFunc == nil {
		c.NewTickerFunc = NewTicker
	}

	ctrl := &Controller{
		quiz:      c.Quiz,
		studentID: c.StudentID,
		st:        c.Store,
		ps:        c.Persister,
		eb:        c.EventBus,
		now:       c.Now,
		tkf:       c.NewTickerFunc,
		answers:   make(map[string]int),
	}

	// A stored submission takes precedence over everything else.
	if c.Prior != nil {
		ctrl.status = domain.AttemptSubmitted
		ctrl.submission = c.Prior
		ctrl.answers = grading.Reconcile(*c.Quiz, *c.Prior)
		ctrl.latch = latchDone
		return ctrl, nil
	}

	v, err := ctrl.st.Get(ctx, ctrl.deadlineKey())
	switch {
	case err == nil:
		deadline, derr := store.DecodeDeadline(v)
		if derr != nil {
			return nil, derr
		}
		ctrl.restore(ctx, deadline)
		return ctrl, nil

	case stderrors.Is(err, store.ErrNotFound):
		ctrl.settle()
		return ctrl, nil

	default:
		return nil, fmt.Errorf("attempt: read deadline: %w", err)
	}
}

// settle maps the accessibility decision onto the initial attempt status.
func (c *Controller) settle() {
	a := schedule.Evaluate(*c.quiz, c.now())
	c.reason = a.Reason

	switch {
	case a.Accessible:
		c.status = domain.AttemptReady
	case a.Status == domain.AccessExpired:
		c.status = domain.AttemptExpired
	default:
		c.status = domain.AttemptNotStarted
	}
}

// restore continues a reloaded session from its persisted deadline. A
// deadline already in the past means the countdown ran out while the page
// was gone: force-submit immediately instead of resuming.
func (c *Controller) restore(ctx context.Context, deadline time.Time) {
	c.deadline = deadline

	if c.now().Before(deadline) {
		c.enterActive(ctx, true)
		return
	}

	c.status = domain.AttemptTimeUp
	if !c.beginSubmit() {
		return
	}
	if err := c.doSubmit(ctx, true); err != nil {
		slog.ErrorContext(ctx, "attempt: submit on expired resume failed",
			"quiz", c.quiz.QuizID,
			"student", c.studentID,
			"error", err,
		)
	}
}

// Start begins a fresh timed session. Only legal from ready. The deadline is
// anchored to the window opening when a From bound is set, so a late start
// still ends at the intended time; the deadline is persisted before the
// countdown begins so an immediate reload can resume.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()

	if c.status != domain.AttemptReady {
		st := c.status
		c.mu.Unlock()
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("cannot start quiz from state %q", st))
	}

	now := c.now()
	if a := schedule.Evaluate(*c.quiz, now); !a.Accessible {
		c.reason = a.Reason
		if a.Status == domain.AccessExpired {
			c.status = domain.AttemptExpired
		} else {
			c.status = domain.AttemptNotStarted
		}
		c.mu.Unlock()
		return errors.New(errors.CodeDeadlineExceeded, errors.WithMessagef("%s", a.Reason))
	}

	deadline := now.Add(c.quiz.Duration)
	if open := schedule.WindowOpen(*c.quiz); !open.IsZero() {
		deadline = open.Add(c.quiz.Duration)
	}

	ttl := deadline.Sub(now) + time.Hour
	if err := c.st.Set(ctx, c.deadlineKey(), store.EncodeDeadline(deadline), ttl); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("attempt: persist deadline: %w", err)
	}

	c.deadline = deadline

	if !now.Before(deadline) {
		// The anchored window already ran out; the attempt is over
		// before a single tick.
		c.status = domain.AttemptTimeUp
		if !c.beginSubmit() {
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
		return c.doSubmit(ctx, true)
	}

	c.enterActive(ctx, false)
	c.mu.Unlock()
	return nil
}

// Resume re-enters an active session from the persisted deadline, for a
// caller remounting an existing controller. A missing deadline is a
// precondition failure; a passed deadline force-submits.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()

	if c.status == domain.AttemptActive {
		c.mu.Unlock()
		return nil
	}
	if c.status.Terminal() || c.status == domain.AttemptTimeUp {
		st := c.status
		c.mu.Unlock()
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("cannot resume quiz from state %q", st))
	}

	v, err := c.st.Get(ctx, c.deadlineKey())
	if stderrors.Is(err, store.ErrNotFound) {
		c.mu.Unlock()
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("no session to resume for quiz %s", c.quiz.QuizID))
	}
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("attempt: read deadline: %w", err)
	}

	deadline, err := store.DecodeDeadline(v)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	c.deadline = deadline
	if c.now().Before(deadline) {
		c.enterActive(ctx, true)
		c.mu.Unlock()
		return nil
	}

	c.status = domain.AttemptTimeUp
	if !c.beginSubmit() {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.doSubmit(ctx, true)
}

// enterActive transitions into active: the integrity watcher is acquired and
// the one-second countdown starts. Callers hold c.mu.
func (c *Controller) enterActive(ctx context.Context, resumed bool) {
	c.status = domain.AttemptActive
	c.reason = ""

	c.watcher = integrity.Acquire(func(k integrity.Kind) {
		c.onViolation(context.WithoutCancel(ctx), k)
	})

	done := make(chan struct{})
	c.tickDone = done
	go c.runCountdown(context.WithoutCancel(ctx), done)

	if c.eb != nil {
		c.eb.Publish(ctx, domain.EventAttemptStarted{
			QuizID:    c.quiz.QuizID,
			StudentID: c.studentID,
			Deadline:  c.deadline,
			Resumed:   resumed,
		})
	}
}

// runCountdown ticks once per second while the session is active. Reaching
// zero is a single-fire event guarded by the submit latch.
func (c *Controller) runCountdown(ctx context.Context, done <-chan struct{}) {
	t := c.tkf(time.Second)
	defer t.Stop()

	for {
		select {
		case <-done:
			return
		case <-t.C():
			if c.onTick(ctx) {
				return
			}
		}
	}
}

// onTick returns true when the countdown is finished and the loop should
// exit.
func (c *Controller) onTick(ctx context.Context) bool {
	c.mu.Lock()

	if c.status != domain.AttemptActive {
		c.mu.Unlock()
		return true
	}

	if c.now().Before(c.deadline) {
		c.mu.Unlock()
		return false
	}

	if !c.beginSubmit() {
		c.mu.Unlock()
		return true
	}

	c.status = domain.AttemptTimeUp
	c.mu.Unlock()

	telemetry.CountForcedSubmission("timeout")

	if err := c.doSubmit(ctx, true); err != nil {
		slog.ErrorContext(ctx, "attempt: submit on timeout failed",
			"quiz", c.quiz.QuizID,
			"student", c.studentID,
			"error", err,
		)
	}

	return true
}

// ReportViolation feeds an integrity event (tab hidden, fullscreen exited)
// into the session. Outside of active it is a no-op.
func (c *Controller) ReportViolation(k integrity.Kind) error {
	if !k.Valid() {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("unknown violation kind %q", k))
	}

	c.mu.Lock()
	w := c.watcher
	c.mu.Unlock()

	// No watcher held means the session is not active; the report is
	// dropped, not an error.
	if w != nil {
		w.Report(k)
	}

	return nil
}

// onViolation is the watcher's handler. It shares the submit latch with the
// countdown so a near-simultaneous timer expiry and violation produce
// exactly one submission.
func (c *Controller) onViolation(ctx context.Context, k integrity.Kind) {
	c.mu.Lock()

	if c.status != domain.AttemptActive || !c.beginSubmit() {
		c.mu.Unlock()
		return
	}

	c.status = domain.AttemptTimeUp
	c.stopCountdownLocked()
	c.mu.Unlock()

	slog.WarnContext(ctx, "attempt: integrity violation",
		"quiz", c.quiz.QuizID,
		"student", c.studentID,
		"kind", string(k),
	)
	telemetry.CountForcedSubmission(string(k))

	if c.eb != nil {
		c.eb.Publish(ctx, domain.EventIntegrityViolation{
			QuizID:    c.quiz.QuizID,
			StudentID: c.studentID,
			Kind:      string(k),
			Time:      c.now(),
		})
	}

	if err := c.doSubmit(ctx, true); err != nil {
		slog.ErrorContext(ctx, "attempt: submit on violation failed",
			"quiz", c.quiz.QuizID,
			"student", c.studentID,
			"error", err,
		)
	}
}

// SelectAnswer records the chosen option for a question. Answers only grow
// while the session is active.
func (c *Controller) SelectAnswer(questionID string, option int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != domain.AttemptActive {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("cannot answer in state %q", c.status))
	}

	for _, q := range c.quiz.Questions {
		if q.QuestionID != questionID {
			continue
		}
		if option < 0 || option >= len(q.Options) {
			return errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("option %d out of range for question %s", option, questionID))
		}
		c.answers[questionID] = option
		return nil
	}

	return errors.New(errors.CodeNotFound,
		errors.WithMessagef("question not found: %s", questionID))
}

// Submit finishes the attempt by explicit student action. Legal from active
// when at least one question has been answered, and from time-up as a retry
// after a failed forced submission.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()

	switch c.status {
	case domain.AttemptActive:
		if len(c.answers) == 0 {
			c.mu.Unlock()
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("cannot submit with no answers"))
		}
	case domain.AttemptTimeUp:
		// retry path after a failed forced submission
	default:
		st := c.status
		c.mu.Unlock()
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("cannot submit from state %q", st))
	}

	forced := c.status == domain.AttemptTimeUp

	if !c.beginSubmit() {
		c.mu.Unlock()
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("submission already in progress"))
	}

	c.stopCountdownLocked()
	c.mu.Unlock()

	return c.doSubmit(ctx, forced)
}

// beginSubmit acquires the submit latch. Callers hold c.mu.
func (c *Controller) beginSubmit() bool {
	if c.latch != latchNone {
		return false
	}
	c.latch = latchSubmitting
	return true
}

// doSubmit grades the captured answers and hands the result to the
// persistence collaborator. The caller must already hold the latch. Failure
// releases the latch, keeps the persisted deadline, and leaves the state as
// it was, so the attempt is not consumed until persistence acknowledges.
func (c *Controller) doSubmit(ctx context.Context, forced bool) error {
	c.mu.Lock()
	res := grading.Grade(*c.quiz, c.answers)
	c.mu.Unlock()

	status := domain.SubmissionManual
	if forced {
		status = domain.SubmissionForced
	}

	id, err := uuid.NewV7()
	if err != nil {
		c.releaseLatch()
		return fmt.Errorf("attempt: generate submission ID: %w", err)
	}

	sub := &domain.Submission{
		SubmissionID: id.String(),
		QuizID:       c.quiz.QuizID,
		StudentID:    c.studentID,
		Answers:      res.Answers,
		Marks:        res.Marks,
		Percentage:   res.Percentage,
		Status:       status,
		SubmitTime:   c.now(),
	}

	if err := c.ps.PersistSubmission(ctx, sub); err != nil {
		c.releaseLatch()
		return fmt.Errorf("attempt: persist submission: %w", err)
	}

	c.mu.Lock()
	c.latch = latchDone
	c.status = domain.AttemptSubmitted
	c.submission = sub
	c.stopCountdownLocked()
	if c.watcher != nil {
		c.watcher.Release()
		c.watcher = nil
	}
	c.mu.Unlock()

	// The deadline key only outlives failed submissions.
	if err := c.st.Delete(ctx, c.deadlineKey()); err != nil {
		slog.WarnContext(ctx, "attempt: clear deadline key failed",
			"quiz", c.quiz.QuizID,
			"student", c.studentID,
			"error", err,
		)
	}

	telemetry.CountSubmission(string(status))

	if c.eb != nil {
		c.eb.Publish(ctx, domain.EventAttemptSubmitted{Submission: *sub})
	}

	return nil
}

func (c *Controller) releaseLatch() {
	c.mu.Lock()
	c.latch = latchNone
	c.mu.Unlock()
}

// Close tears the controller down: the countdown stops and the watcher is
// released, but the persisted deadline is kept so a genuine reload can
// resume.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopCountdownLocked()
	if c.watcher != nil {
		c.watcher.Release()
		c.watcher = nil
	}
}

func (c *Controller) stopCountdownLocked() {
	if c.tickDone != nil {
		close(c.tickDone)
		c.tickDone = nil
	}
}

func (c *Controller) deadlineKey() string {
	return store.DeadlineKey(c.quiz.QuizID, c.studentID)
}

// Status returns the current lifecycle state.
func (c *Controller) Status() domain.AttemptStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// RemainingSeconds reports the countdown, rounded up, never below zero.
func (c *Controller) RemainingSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

func (c *Controller) remainingLocked() int {
	if c.deadline.IsZero() || c.status != domain.AttemptActive {
		return 0
	}

	rem := int(math.Ceil(c.deadline.Sub(c.now()).Seconds()))
	if rem < 0 {
		return 0
	}
	return rem
}
