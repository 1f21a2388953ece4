package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	WebhooksReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_received_total",
			Help: "Total number of webhook deliveries received (count)",
		},
		[]string{"event"},
	)

	WebhooksRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_rejected_total",
			Help: "Total number of webhook deliveries rejected before routing (count)",
		},
		[]string{"reason"},
	)

	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published to the broker (count)",
		},
		[]string{"routing_key"},
	)

	PublishFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publish_failures_total",
			Help: "Total number of failed publish attempts (count)",
		},
		[]string{"routing_key"},
	)

	MessagesConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_consumed_total",
			Help: "Total number of broker messages delivered to the worker (count)",
		},
		[]string{"routing_key"},
	)

	MessagesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_dropped_total",
			Help: "Total number of messages acknowledged without processing (count)",
		},
		[]string{"reason"},
	)

	ProcessingFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processing_failures_total",
			Help: "Total number of processing failures acknowledged without requeue (count)",
		},
		[]string{"event"},
	)

	TasksProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_processed_total",
			Help: "Total number of tasks processed by the worker (count)",
		},
		[]string{"status"},
	)

	ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "task_processing_duration_ms",
			Help:    "Task processing duration in milliseconds",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 15000, 60000},
		},
		[]string{"status"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of rate-limited management API requests (count)",
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

func RegisterReceiverMetrics() {
	prometheus.MustRegister(WebhooksReceivedTotal)
	prometheus.MustRegister(WebhooksRejectedTotal)
	prometheus.MustRegister(EventsPublishedTotal)
	prometheus.MustRegister(PublishFailuresTotal)
}

func RegisterWorkerMetrics() {
	prometheus.MustRegister(MessagesConsumedTotal)
	prometheus.MustRegister(MessagesDroppedTotal)
	prometheus.MustRegister(ProcessingFailuresTotal)
	prometheus.MustRegister(TasksProcessedTotal)
	prometheus.MustRegister(ProcessingDuration)
}

func RegisterManagementMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
}

func ObserveProcessingDuration(duration time.Duration, status string) {
	ProcessingDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}
