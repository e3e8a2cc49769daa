package metrics

import "github.com/prometheus/client_golang/prometheus"

var SmilesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "smiles_total",
		Help: "Total number of first-time smiles recorded on messages",
	},
)

var MessagesCreatedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "messages_created_total",
		Help: "Total number of smile messages created by senders",
	},
)

var RateLimitDenialsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "message_rate_limit_denials_total",
		Help: "Total number of message sends denied for unconfirmed senders",
	},
)

var SignupsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "signups_total",
		Help: "Total number of signup attempts by result",
	},
	[]string{"result"},
)

var EmailsSentTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Total number of transactional emails attempted per channel",
	},
	[]string{"channel", "status"},
)

var HttpRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests received",
	},
	[]string{"endpoint", "status", "method"},
)

var HttpRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"endpoint", "method"},
)

var HttpErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_errors_total",
		Help: "Total number of failed HTTP requests (4xx/5xx)",
	},
	[]string{"endpoint", "status", "method"},
)

var HttpThrottleRejectionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "http_throttle_rejections_total",
		Help: "Total number of HTTP requests rejected by the per-client throttle",
	},
)

// Register adds every collector to the default registry. Call once at startup.
func Register() {
	prometheus.MustRegister(
		SmilesTotal,
		MessagesCreatedTotal,
		RateLimitDenialsTotal,
		SignupsTotal,
		EmailsSentTotal,
		HttpRequestsTotal,
		HttpRequestDuration,
		HttpErrorsTotal,
		HttpThrottleRejectionsTotal,
	)
}
