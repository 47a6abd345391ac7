package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsCreated = promauto.NewCounter(prometheus.CounterOpts{Namespace: "goods_transport", Name: "requests_created_total", Help: "Total transport requests created"})
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "goods_transport", Name: "transitions_total", Help: "Lifecycle transitions applied"},
		[]string{"op"},
	)
	SweeperRejections = promauto.NewCounter(prometheus.CounterOpts{Namespace: "goods_transport", Name: "sweeper_rejections_total", Help: "Requests auto-rejected by the stale sweeper"})

	SettlementAttempts = promauto.NewCounter(prometheus.CounterOpts{Namespace: "goods_transport", Name: "settlement_attempts_total", Help: "Payment settlement attempts"})
	SettlementFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: "goods_transport", Name: "settlement_failures_total", Help: "Settlements that exhausted all retries"})

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "goods_transport", Name: "notifications_sent_total", Help: "Notifications dispatched per channel"},
		[]string{"channel"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "goods_transport", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "goods_transport",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
