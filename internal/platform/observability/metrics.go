package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_messages_ingested_total",
		Help: "The total number of ingested messages",
	}, []string{"channel"})

	MediaStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_media_stored_total",
		Help: "Media uploads by outcome",
	}, []string{"status"})

	FloodWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedpulse_flood_wait_total",
		Help: "Rate limit signals received from the message source",
	})

	FloodWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedpulse_flood_wait_sleep_seconds",
		Help:    "Backoff sleeps applied after rate limit signals",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900, 1800, 3600},
	})

	AccountFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_account_failures_total",
		Help: "Accounts skipped during a poll pass by reason",
	}, []string{"reason"})

	PollPassDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedpulse_poll_pass_duration_seconds",
		Help:    "Duration of one full poll pass over all accounts",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	JobErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_job_errors_total",
		Help: "Failed iterations of background jobs",
	}, []string{"job"})

	JobDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feedpulse_job_duration_seconds",
		Help:    "Duration of background job iterations",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	JobSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_job_skipped_total",
		Help: "Job iterations skipped because another instance held the lock",
	}, []string{"job"})

	TopicsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedpulse_topics_created_total",
		Help: "The total number of topics created by the clusterer",
	})

	MessagesClustered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedpulse_messages_clustered_total",
		Help: "The total number of messages linked to topics",
	})

	RankingsUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_rankings_upserted_total",
		Help: "Ranking rows written by entity kind and window",
	}, []string{"entity_kind", "window"})
)
