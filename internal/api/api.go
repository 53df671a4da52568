package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/classtrack/quizengine/internal/attempt"
	"github.com/classtrack/quizengine/internal/domain"
	"github.com/classtrack/quizengine/internal/errors"
	"github.com/classtrack/quizengine/internal/event"
	"github.com/classtrack/quizengine/internal/integrity"
)

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Attempts     *attempt.Manager
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	attempts *attempt.Manager
	redis    Redis
	prefix   string
}

func New(c Config) *API {
	a := &API{
		attempts: c.Attempts,
		redis:    c.Redis,
		prefix:   c.PubsubPrefix,
	}

	g := c.Router.Group("/v1/quizzes/:quiz_id/attempt")
	g.GET("", a.GetAttempt)
	g.POST("/start", a.StartAttempt)
	g.POST("/resume", a.ResumeAttempt)
	g.POST("/answers", a.SelectAnswer)
	g.POST("/submit", a.SubmitAttempt)
	g.POST("/violations", a.ReportViolation)

	c.EventBus.Subscribe(domain.EventNameAttemptSubmitted, func(ctx context.Context, e event.Event) error {
		return a.PublishAttemptSubmitted(ctx, e.(domain.EventAttemptSubmitted))
	})
	c.EventBus.Subscribe(domain.EventNameIntegrityViolation, func(ctx context.Context, e event.Event) error {
		return a.PublishIntegrityViolation(ctx, e.(domain.EventIntegrityViolation))
	})

	return a
}

type attemptURI struct {
	QuizID string `uri:"quiz_id" binding:"required"`
}

// GetAttempt renders the attempt view model: status, remaining seconds, and
// per-question display state.
func (a *API) GetAttempt(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, ctrl.Snapshot())
}

func (a *API) StartAttempt(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	if err := ctrl.Start(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ctrl.Snapshot())
}

func (a *API) ResumeAttempt(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	if err := ctrl.Resume(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ctrl.Snapshot())
}

type selectAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	Option     *int   `json:"option" binding:"required"`
}

func (a *API) SelectAnswer(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	var req selectAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	if err := ctrl.SelectAnswer(req.QuestionID, *req.Option); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ctrl.Snapshot())
}

func (a *API) SubmitAttempt(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	if err := ctrl.Submit(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ctrl.Snapshot())
}

type reportViolationRequest struct {
	Kind string `json:"kind" binding:"required"`
}

func (a *API) ReportViolation(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	var req reportViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	if err := ctrl.ReportViolation(integrity.Kind(req.Kind)); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// controller resolves the attempt for the caller. The student is identified
// by header; authentication is the surrounding application's concern.
func (a *API) controller(c *gin.Context) (*attempt.Controller, bool) {
	var uri attemptURI
	if err := c.ShouldBindUri(&uri); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return nil, false
	}

	student := c.GetHeader("X-Student-ID")
	if student == "" {
		abortWithError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("missing X-Student-ID header")))
		return nil, false
	}

	ctrl, err := a.attempts.Attempt(c.Request.Context(), uri.QuizID, student)
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}

	return ctrl, true
}

func abortWithError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{
		"code":    e.Code,
		"message": e.Message,
	})
}
