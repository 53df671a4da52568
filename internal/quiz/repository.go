// Package quiz holds the persistence collaborators of the session engine:
// quiz definitions (including the answer key), prior submissions, and the
// one-shot write of a finished attempt.
package quiz

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classtrack/quizengine/internal/domain"
	"github.com/classtrack/quizengine/internal/errors"
)

type Config struct {
	DB *pgxpool.Pool
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(c Config) *Repository {
	return &Repository{db: c.DB}
}

// FetchQuiz loads a quiz definition with its ordered questions. The engine
// is trusted with the answer key.
func (r *Repository) FetchQuiz(ctx context.Context, quizID string) (*domain.Quiz, error) {
	const quizStmt = `
SELECT quiz_id, title, duration_minutes, quiz_date, COALESCE(window_from, ''), COALESCE(window_to, ''), total_marks
FROM quizzes
WHERE quiz_id = $1;`

	var (
		q       domain.Quiz
		minutes int
	)
	err := r.db.QueryRow(ctx, quizStmt, quizID).
		Scan(&q.QuizID, &q.Title, &minutes, &q.Date, &q.From, &q.To, &q.TotalMarks)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("quiz not found: %s", quizID))
	}
	if err != nil {
		return nil, fmt.Errorf("fetch quiz %s: %w", quizID, err)
	}
	q.Duration = time.Duration(minutes) * time.Minute

	const questionStmt = `
SELECT question_id, title, COALESCE(description, ''), options, correct_answer, marks
FROM questions
WHERE quiz_id = $1
ORDER BY position;`

	rows, err := r.db.Query(ctx, questionStmt, quizID)
	if err != nil {
		return nil, fmt.Errorf("fetch questions for quiz %s: %w", quizID, err)
	}

	q.Questions, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Question, error) {
		var qs domain.Question
		if err := row.Scan(&qs.QuestionID, &qs.Title, &qs.Description, &qs.Options, &qs.CorrectAnswer, &qs.Marks); err != nil {
			return domain.Question{}, err
		}
		return qs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan questions for quiz %s: %w", quizID, err)
	}

	if err := q.Validate(); err != nil {
		return nil, errors.New(errors.CodeInternal, errors.WithCause(err))
	}

	return &q, nil
}

// FetchPriorSubmission returns the stored submission for a student, or nil
// when none exists.
func (r *Repository) FetchPriorSubmission(ctx context.Context, quizID, studentID string) (*domain.Submission, error) {
	const stmt = `
SELECT submission_id, quiz_id, student_id, answers, marks, percentage, status, submit_time
FROM submissions
WHERE quiz_id = $1 AND student_id = $2;`

	var (
		sub     domain.Submission
		answers []int32
	)
	err := r.db.QueryRow(ctx, stmt, quizID, studentID).
		Scan(&sub.SubmissionID, &sub.QuizID, &sub.StudentID, &answers, &sub.Marks, &sub.Percentage, &sub.Status, &sub.SubmitTime)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch submission quiz=%s student=%s: %w", quizID, studentID, err)
	}

	sub.Answers = make([]int, 0, len(answers))
	for _, a := range answers {
		sub.Answers = append(sub.Answers, int(a))
	}

	return &sub, nil
}

// PersistSubmission durably records a finished attempt. At most one
// submission may exist per student per quiz; a second write reports
// AlreadyExists.
func (r *Repository) PersistSubmission(ctx context.Context, sub *domain.Submission) error {
	const stmt = `
INSERT INTO submissions (submission_id, quiz_id, student_id, answers, marks, percentage, status, submit_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	answers := make([]int32, 0, len(sub.Answers))
	for _, a := range sub.Answers {
		answers = append(answers, int32(a))
	}

	_, err := r.db.Exec(ctx, stmt,
		sub.SubmissionID, sub.QuizID, sub.StudentID, answers, sub.Marks, sub.Percentage, sub.Status, sub.SubmitTime)

	var pgErr *pgconn.PgError
	const codeUniqueViolation = "23505"
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("submission already recorded: quiz=%s student=%s", sub.QuizID, sub.StudentID),
			errors.WithCause(err))
	}

	if err != nil {
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("persist submission: quiz=%s student=%s", sub.QuizID, sub.StudentID),
			errors.WithCause(err))
	}

	return nil
}
