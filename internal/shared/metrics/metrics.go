package metrics

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lambda_janitor"

var (
	registry = prometheus.NewRegistry()

	runsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_started_total",
		Help:      "Total cleanup runs started.",
	})
	runsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_finished_total",
		Help:      "Total cleanup runs finished, by outcome.",
	}, []string{"outcome"})
	runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Cleanup run duration in seconds.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
	})
	lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last cleanup run finished.",
	})
	classified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "versions_classified_total",
		Help:      "Function versions classified, by action.",
	}, []string{"action"})
	versionsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "versions_deleted_total",
		Help:      "Function versions deleted.",
	})
	deleteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delete_failures_total",
		Help:      "Function version deletions that failed.",
	})
	listingFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listing_failures_total",
		Help:      "Function or version listings that failed.",
	})
	notificationsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_sent_total",
		Help:      "Warning emails sent.",
	})
	notificationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Warning emails that failed to send.",
	})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		runsStarted,
		runsFinished,
		runDuration,
		lastRun,
		classified,
		versionsDeleted,
		deleteFailures,
		listingFailures,
		notificationsSent,
		notificationFailures,
	)
}

// IncRunsStarted increments the started counter.
func IncRunsStarted() {
	runsStarted.Inc()
}

// ObserveRun records a finished run.
func ObserveRun(outcome string, duration time.Duration, finishedAt time.Time) {
	if duration < 0 {
		duration = 0
	}
	runsFinished.WithLabelValues(outcome).Inc()
	runDuration.Observe(duration.Seconds())
	lastRun.Set(float64(finishedAt.Unix()))
}

// ObserveClassification counts one classified version.
func ObserveClassification(action string) {
	classified.WithLabelValues(action).Inc()
}

// IncVersionsDeleted increments the deleted counter.
func IncVersionsDeleted() {
	versionsDeleted.Inc()
}

// IncDeleteFailures increments the delete failure counter.
func IncDeleteFailures() {
	deleteFailures.Inc()
}

// IncListingFailures increments the listing failure counter.
func IncListingFailures() {
	listingFailures.Inc()
}

// IncNotificationsSent increments the sent email counter.
func IncNotificationsSent() {
	notificationsSent.Inc()
}

// IncNotificationFailures increments the failed email counter.
func IncNotificationFailures() {
	notificationFailures.Inc()
}

// Registry exposes the package registry for tests and custom exporters.
func Registry() *prometheus.Registry {
	return registry
}

// HTTPHandler serves the registry in Prometheus exposition format.
func HTTPHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Handler exposes metrics for a gin route.
func Handler() gin.HandlerFunc {
	return gin.WrapH(HTTPHandler())
}
