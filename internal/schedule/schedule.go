// Package schedule decides whether a quiz may be attempted at a given
// moment. Evaluation is a pure function of the quiz schedule and the clock,
// so boundary behavior can be tested exhaustively.
package schedule

import (
	"fmt"
	"time"

	"github.com/classtrack/quizengine/internal/domain"
)

const clockLayout = "15:04"

// Evaluate applies the access rules in order:
//
//  1. Wrong calendar day: expired if the quiz day has passed, otherwise
//     not started.
//  2. No window: accessible for the whole day.
//  3. From only: accessible from that moment to end of day.
//  4. From and To: accessible inside the inclusive window.
func Evaluate(q domain.Quiz, now time.Time) domain.Access {
	qy, qm, qd := q.Date.Date()
	ny, nm, nd := now.Date()

	if qy != ny || qm != nm || qd != nd {
		if q.Date.Before(now) {
			return domain.Access{
				Status: domain.AccessExpired,
				Reason: fmt.Sprintf("quiz was scheduled for %s", q.Date.Format("2006-01-02")),
			}
		}
		return domain.Access{
			Status: domain.AccessNotStarted,
			Reason: fmt.Sprintf("quiz opens on %s", q.Date.Format("2006-01-02")),
		}
	}

	t := now.Format(clockLayout)

	switch {
	case q.From == "" && q.To == "":
		return domain.Access{
			Accessible: true,
			Status:     domain.AccessReady,
			Reason:     "quiz is open all day",
		}

	case q.To == "":
		if t >= q.From {
			return domain.Access{
				Accessible: true,
				Status:     domain.AccessActiveWindow,
				Reason:     "quiz window is open",
			}
		}
		return domain.Access{
			Status: domain.AccessNotStarted,
			Reason: fmt.Sprintf("quiz opens at %s", q.From),
		}

	default:
		if t < q.From {
			return domain.Access{
				Status: domain.AccessNotStarted,
				Reason: fmt.Sprintf("quiz opens at %s", q.From),
			}
		}
		if t > q.To {
			return domain.Access{
				Status: domain.AccessExpired,
				Reason: fmt.Sprintf("quiz closed at %s", q.To),
			}
		}
		return domain.Access{
			Accessible: true,
			Status:     domain.AccessActiveWindow,
			Reason:     "quiz window is open",
		}
	}
}

// WindowOpen returns the moment the quiz window opens on its scheduled day,
// or the zero time when no From bound is set. Deadlines anchor to this when a
// session starts late inside a bounded window.
func WindowOpen(q domain.Quiz) time.Time {
	if q.From == "" {
		return time.Time{}
	}

	t, err := time.ParseInLocation(clockLayout, q.From, q.Date.Location())
	if err != nil {
		return time.Time{}
	}

	return time.Date(q.Date.Year(), q.Date.Month(), q.Date.Day(), t.Hour(), t.Minute(), 0, 0, q.Date.Location())
}
