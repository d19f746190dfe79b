package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	casesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cases_created_total",
			Help: "Total number of cases created",
		},
		[]string{"priority"},
	)

	stageTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "case_stage_transitions_total",
			Help: "Total number of case stage transitions",
		},
		[]string{"from_stage", "to_stage"},
	)

	authorizationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"module", "action", "decision"},
	)

	notificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Total number of notifications dispatched",
		},
		[]string{"event_type"},
	)

	notificationsDeduped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_deduped_total",
			Help: "Total number of duplicate notifications suppressed",
		},
	)

	alertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "case_alerts_raised_total",
			Help: "Total number of case alerts raised",
		},
		[]string{"priority"},
	)

	historyEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_entries_total",
			Help: "Total number of case history entries created",
		},
	)

	legacyRecordsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legacy_records_imported_total",
			Help: "Total number of records imported from the legacy register",
		},
		[]string{"status"},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordCaseCreated records a case creation
func RecordCaseCreated(priority string) {
	casesCreated.WithLabelValues(priority).Inc()
}

// RecordStageTransition records a case stage transition
func RecordStageTransition(fromStage, toStage string) {
	stageTransitions.WithLabelValues(fromStage, toStage).Inc()
}

// RecordAuthorizationDecision records an authorization decision
func RecordAuthorizationDecision(module, action string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	authorizationDecisions.WithLabelValues(module, action, decision).Inc()
}

// RecordNotificationDispatched records a dispatched notification
func RecordNotificationDispatched(eventType string) {
	notificationsDispatched.WithLabelValues(eventType).Inc()
}

// RecordNotificationDeduped records a suppressed duplicate notification
func RecordNotificationDeduped() {
	notificationsDeduped.Inc()
}

// RecordAlertRaised records a raised alert
func RecordAlertRaised(priority string) {
	alertsRaised.WithLabelValues(priority).Inc()
}

// RecordHistoryEntry records a case history entry creation
func RecordHistoryEntry() {
	historyEntriesTotal.Inc()
}

// RecordLegacyImport records a legacy register import result
func RecordLegacyImport(status string) {
	legacyRecordsImported.WithLabelValues(status).Inc()
}

// RecordDBConnections records active database connections
func RecordDBConnections(count int) {
	dbConnectionsActive.Set(float64(count))
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
