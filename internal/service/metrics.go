package service

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reviewsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reviews_submitted_total",
			Help: "Total number of reviews accepted",
		},
	)

	reviewValidationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_validation_failures_total",
			Help: "Total number of rejected review submissions and reports by error code",
		},
		[]string{"code"},
	)

	reviewHelpfulVotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_helpful_votes_total",
			Help: "Total number of helpful votes, split by whether they changed the count",
		},
		[]string{"changed"},
	)

	reviewReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_reports_total",
			Help: "Total number of moderation reports by reason",
		},
		[]string{"reason", "changed"},
	)

	reviewProviderResponsesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "review_provider_responses_total",
			Help: "Total number of provider responses attached to reviews",
		},
	)

	reviewHydrationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "review_hydration_duration_seconds",
			Help:    "Time taken to load a provider's reviews into memory",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
)

func changedLabel(changed bool) string {
	return strconv.FormatBool(changed)
}
