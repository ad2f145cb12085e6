package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "proaccount"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Verified Stripe webhook events by type and resulting action",
		},
		[]string{"event_type", "action"},
	)

	webhookDuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_duplicates_total",
			Help:      "Webhook deliveries skipped because the event id was already processed",
		},
	)

	persistStageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_stage_total",
			Help:      "Persistence stage attempts by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	syncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Subscription reconciliation runs by trigger",
		},
		[]string{"trigger"},
	)

	syncUsersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_users_total",
			Help:      "Users checked by the reconciliation job by outcome",
		},
		[]string{"outcome"},
	)

	syncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Reconciliation run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)
)

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordWebhookEvent(eventType, action string) {
	webhookEventsTotal.WithLabelValues(eventType, action).Inc()
}

func RecordWebhookDuplicate() {
	webhookDuplicatesTotal.Inc()
}

// RecordPersistStage records one stage attempt of the persistence chain
func RecordPersistStage(stage string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	persistStageTotal.WithLabelValues(stage, outcome).Inc()
}

func RecordSyncRun(trigger string, duration time.Duration, checked, updated, errored int) {
	syncRunsTotal.WithLabelValues(trigger).Inc()
	syncDuration.Observe(duration.Seconds())
	if unchanged := checked - updated - errored; unchanged > 0 {
		syncUsersTotal.WithLabelValues("unchanged").Add(float64(unchanged))
	}
	syncUsersTotal.WithLabelValues("updated").Add(float64(updated))
	syncUsersTotal.WithLabelValues("error").Add(float64(errored))
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
