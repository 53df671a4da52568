package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizengine",
		Name:      "submissions_total",
		Help:      "Finished attempts persisted, by submission status.",
	}, []string{"status"})

	forcedSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizengine",
		Name:      "forced_submissions_total",
		Help:      "Forced submissions, by cause (timeout or violation kind).",
	}, []string{"cause"})
)

func CountSubmission(status string) {
	submissionsTotal.WithLabelValues(status).Inc()
}

func CountForcedSubmission(cause string) {
	forcedSubmissionsTotal.WithLabelValues(cause).Inc()
}
