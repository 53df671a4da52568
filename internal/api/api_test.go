package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/quizengine/internal/api"
	"github.com/classtrack/quizengine/internal/attempt"
	"github.com/classtrack/quizengine/internal/domain"
	"github.com/classtrack/quizengine/internal/errors"
	"github.com/classtrack/quizengine/internal/event"
	"github.com/classtrack/quizengine/internal/store"
)

type fakeSource struct {
	quiz *domain.Quiz
}

func (s *fakeSource) FetchQuiz(_ context.Context, quizID string) (*domain.Quiz, error) {
	if s.quiz == nil || s.quiz.QuizID != quizID {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("quiz not found: %s", quizID))
	}
	return s.quiz, nil
}

func (s *fakeSource) FetchPriorSubmission(_ context.Context, _, _ string) (*domain.Submission, error) {
	return nil, nil
}

type fakePersister struct {
	subs []domain.Submission
}

func (p *fakePersister) PersistSubmission(_ context.Context, sub *domain.Submission) error {
	p.subs = append(p.subs, *sub)
	return nil
}

type testAPI struct {
	router    *gin.Engine
	persister *fakePersister
	redis     redis.UniversalClient
	eb        *event.Bus
}

func makeAPI(t *testing.T) *testAPI {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err())

	now := time.Now()
	quiz := &domain.Quiz{
		QuizID:     "quiz-1",
		Title:      "Kinematics",
		Duration:   30 * time.Minute,
		Date:       time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		TotalMarks: 5,
		Questions: []domain.Question{
			{QuestionID: "qs1", Title: "Q1", Options: []string{"a", "b"}, CorrectAnswer: 1, Marks: 2},
			{QuestionID: "qs2", Title: "Q2", Options: []string{"a", "b"}, CorrectAnswer: 0, Marks: 3},
		},
	}

	p := &fakePersister{}
	eb := event.NewBus()

	m := attempt.NewManager(attempt.ManagerConfig{
		Source:    &fakeSource{quiz: quiz},
		Persister: p,
		Store:     store.NewMemory(),
		EventBus:  eb,
	})
	t.Cleanup(m.Close)

	gin.SetMode(gin.TestMode)
	e := gin.New()

	api.New(api.Config{
		Router:       e,
		EventBus:     eb,
		Attempts:     m,
		Redis:        rc,
		PubsubPrefix: "test:pubsub",
	})

	return &testAPI{router: e, persister: p, redis: rc, eb: eb}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	r.Header.Set("X-Student-ID", "student-1")

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, r)
	return w
}

func TestAPI_AttemptLifecycle(t *testing.T) {
	a := makeAPI(t)

	// Quiz has no window today, so the attempt starts ready.
	w := a.do(t, http.MethodGet, "/v1/quizzes/quiz-1/attempt", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap attempt.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Equal(t, string(domain.AttemptReady), snap.Status)
	require.Len(t, snap.Questions, 2)

	w = a.do(t, http.MethodPost, "/v1/quizzes/quiz-1/attempt/start", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Equal(t, string(domain.AttemptActive), snap.Status)
	require.True(t, snap.FullscreenRequired)
	require.Equal(t, 30*60, snap.RemainingSeconds)

	w = a.do(t, http.MethodPost, "/v1/quizzes/quiz-1/attempt/answers", `{"question_id":"qs1","option":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodPost, "/v1/quizzes/quiz-1/attempt/submit", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Equal(t, string(domain.AttemptSubmitted), snap.Status)
	require.NotNil(t, snap.Submission)
	require.Equal(t, 2, snap.Submission.Marks)

	require.Len(t, a.persister.subs, 1)
	require.Equal(t, domain.SubmissionManual, a.persister.subs[0].Status)
}

func TestAPI_ViolationForcesSubmission(t *testing.T) {
	a := makeAPI(t)

	w := a.do(t, http.MethodPost, "/v1/quizzes/quiz-1/attempt/start", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodPost, "/v1/quizzes/quiz-1/attempt/violations", `{"kind":"visibility-hidden"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		w := a.do(t, http.MethodGet, "/v1/quizzes/quiz-1/attempt", "")
		var snap attempt.Snapshot
		if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
			return false
		}
		return snap.Status == string(domain.AttemptSubmitted)
	}, 2*time.Second, 10*time.Millisecond)

	require.Len(t, a.persister.subs, 1)
	require.Equal(t, domain.SubmissionForced, a.persister.subs[0].Status)
}

func TestAPI_ErrorsMapToHTTP(t *testing.T) {
	a := makeAPI(t)

	// Missing student header.
	r := httptest.NewRequest(http.MethodGet, "/v1/quizzes/quiz-1/attempt", nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, r)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown quiz.
	w = a.do(t, http.MethodGet, "/v1/quizzes/nope/attempt", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	// Submitting before starting.
	w = a.do(t, http.MethodPost, "/v1/quizzes/quiz-1/attempt/submit", "")
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestAPI_PublishAttemptSubmitted(t *testing.T) {
	a := makeAPI(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := a.redis.Subscribe(ctx, "test:pubsub:student:student-1")
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx) // wait for the subscription confirmation
	require.NoError(t, err)

	a.do(t, http.MethodPost, "/v1/quizzes/quiz-1/attempt/start", "")
	a.do(t, http.MethodPost, "/v1/quizzes/quiz-1/attempt/answers", `{"question_id":"qs2","option":0}`)
	a.do(t, http.MethodPost, "/v1/quizzes/quiz-1/attempt/submit", "")
	a.eb.Stop()

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var n struct {
		Event string               `json:"event"`
		Data  api.SubmissionResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
	require.Equal(t, domain.EventNameAttemptSubmitted, n.Event)
	require.Equal(t, api.SubmissionResult{
		QuizID:     "quiz-1",
		StudentID:  "student-1",
		Marks:      3,
		Percentage: "60.00",
		Status:     string(domain.SubmissionManual),
	}, n.Data)
}
