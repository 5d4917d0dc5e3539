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
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "care_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "care_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	notificationsScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "care_notifications_scheduled_total",
			Help: "Total local notifications scheduled by category and trigger kind",
		},
		[]string{"category", "trigger"},
	)

	notificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "care_notifications_delivered_total",
			Help: "Total local notifications delivered by category",
		},
		[]string{"category"},
	)

	historyDeduped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "care_history_deduped_total",
			Help: "History records collapsed into an existing chat record",
		},
	)

	historyEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "care_history_evicted_total",
			Help: "History records dropped at the per-user retention cap",
		},
	)

	pushRegistrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "care_push_registrations_total",
			Help: "Push registration attempts by outcome",
		},
		[]string{"result"},
	)

	pushReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "care_push_reports_total",
			Help: "Push token reports to the backend by outcome",
		},
		[]string{"result"},
	)

	remotePushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "care_remote_push_total",
			Help: "Remote push deliveries by outcome",
		},
		[]string{"result"},
	)

	queueMessagesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "care_queue_messages_in_flight",
			Help: "Current messages being processed from the push queue",
		},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "care_rate_limit_rejections_total",
			Help: "Requests rejected by rate limiter",
		},
		[]string{"key"},
	)

	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "care_db_connections_active",
			Help: "Active database connections",
		},
	)

	redisConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "care_redis_connections_active",
			Help: "Active Redis connections",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordNotificationScheduled records a local notification being scheduled
func RecordNotificationScheduled(category, trigger string) {
	notificationsScheduled.WithLabelValues(category, trigger).Inc()
}

// RecordNotificationDelivered records a local notification firing
func RecordNotificationDelivered(category string) {
	notificationsDelivered.WithLabelValues(category).Inc()
}

// RecordHistoryDeduped records a chat notification collapsed into an existing record
func RecordHistoryDeduped() {
	historyDeduped.Inc()
}

// RecordHistoryEvicted records records dropped at the retention cap
func RecordHistoryEvicted(count int) {
	historyEvicted.Add(float64(count))
}

// RecordPushRegistration records a push registration outcome
// (token, local_only, denied, skipped)
func RecordPushRegistration(result string) {
	pushRegistrations.WithLabelValues(result).Inc()
}

// RecordPushReport records the outcome of reporting a token to the backend
func RecordPushReport(result string) {
	pushReports.WithLabelValues(result).Inc()
}

// RecordRemotePush records a remote push delivery outcome
func RecordRemotePush(result string) {
	remotePushes.WithLabelValues(result).Inc()
}

// SetQueueMessagesInFlight sets the current in-flight message count
func SetQueueMessagesInFlight(count int) {
	queueMessagesInFlight.Set(float64(count))
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection(key string) {
	rateLimitRejections.WithLabelValues(key).Inc()
}

// SetDBConnections sets active database connection count
func SetDBConnections(count int) {
	dbConnectionsActive.Set(float64(count))
}

// SetRedisConnections sets active Redis connection count
func SetRedisConnections(count int) {
	redisConnectionsActive.Set(float64(count))
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
