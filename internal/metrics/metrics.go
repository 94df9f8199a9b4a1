package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook outcomes.
const (
	OutcomeAccepted     = "accepted"
	OutcomeUnauthorized = "unauthorized"
	OutcomeFailed       = "failed"
	OutcomeRateLimited  = "rate_limited"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hookd_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hookd_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	webhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookd_webhook_deliveries_total",
			Help: "Webhook deliveries by event tag and outcome",
		},
		[]string{"event", "outcome"},
	)

	webhookDispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hookd_webhook_dispatch_duration_seconds",
			Help:    "Time spent dispatching a webhook event to its processor",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"event"},
	)

	liveClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hookd_live_clients",
			Help: "Number of connected live feed clients",
		},
	)

	liveDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookd_live_dropped_messages_total",
			Help: "Live feed messages dropped because a client buffer was full",
		},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func IncrementInFlight() {
	httpRequestsInFlight.Inc()
}

func DecrementInFlight() {
	httpRequestsInFlight.Dec()
}

// RecordWebhook counts one webhook call. Unknown tags are folded into a
// single "unknown" label so arbitrary caller input cannot grow cardinality.
func RecordWebhook(event, outcome string) {
	webhookDeliveries.WithLabelValues(EventLabel(event), outcome).Inc()
}

func RecordDispatch(event string, duration time.Duration) {
	webhookDispatchDuration.WithLabelValues(EventLabel(event)).Observe(duration.Seconds())
}

func SetLiveClients(n int) {
	liveClients.Set(float64(n))
}

func IncrementLiveDropped() {
	liveDropped.Inc()
}

// EventLabel maps an event tag onto a bounded label set.
func EventLabel(event string) string {
	switch event {
	case "message", "lead", "conversion", "payment":
		return event
	case "":
		return "none"
	default:
		return "unknown"
	}
}
