package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concert_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	TokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "concert_queue_tokens_issued_total",
			Help: "Total queue tokens issued",
		},
	)

	TokensPromoted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "concert_queue_tokens_promoted_total",
			Help: "Total queue tokens promoted to ACTIVE",
		},
	)

	TokensExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "concert_queue_tokens_expired_total",
			Help: "Total queue tokens expired or released",
		},
	)

	ReservationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "concert_reservations_created_total",
			Help: "Total seat reservations created",
		},
	)

	ReservationsPaid = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "concert_reservations_paid_total",
			Help: "Total reservations settled as paid",
		},
	)

	ReservationsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "concert_reservations_expired_total",
			Help: "Total reservations reclaimed by the sweeper",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "concert_sweep_seconds",
			Help:    "Duration of sweeper passes",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "concert_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox record",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "concert_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "concert_rate_limit_exceeded_total",
			Help: "Total rate limited requests",
		},
	)
)
