package metrics

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "missioncontrol_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "missioncontrol_api_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Relay metrics
	eventsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "missioncontrol_relay_events_ingested_total",
			Help: "Events appended to the event log",
		},
		[]string{"type", "requires_approval"},
	)

	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "missioncontrol_relay_decisions_total",
			Help: "Decision attempts on approval tasks by outcome",
		},
		[]string{"decision", "outcome"},
	)

	commandsDeliveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "missioncontrol_relay_commands_delivered_total",
			Help: "Pending commands returned to polling agents",
		},
	)

	commandsAckedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "missioncontrol_relay_commands_acked_total",
			Help: "Commands acknowledged by agents",
		},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, durationSeconds float64) {
	status := "unknown"
	if statusCode >= 200 && statusCode < 300 {
		status = "2xx"
	} else if statusCode >= 300 && statusCode < 400 {
		status = "3xx"
	} else if statusCode >= 400 && statusCode < 500 {
		status = "4xx"
	} else if statusCode >= 500 {
		status = "5xx"
	}

	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordEventIngested counts an appended event
func RecordEventIngested(eventType string, requiresApproval bool) {
	approval := "false"
	if requiresApproval {
		approval = "true"
	}
	eventsIngestedTotal.WithLabelValues(eventType, approval).Inc()
}

// RecordDecision counts a decision attempt; outcome is applied, conflict, not_found or error
func RecordDecision(decision, outcome string) {
	decisionsTotal.WithLabelValues(decision, outcome).Inc()
}

// RecordCommandsDelivered counts commands handed to a polling agent
func RecordCommandsDelivered(n int) {
	commandsDeliveredTotal.Add(float64(n))
}

// RecordCommandAcked counts an acknowledgment
func RecordCommandAcked() {
	commandsAckedTotal.Inc()
}

// RegisterDBStats exports connection pool statistics
func RegisterDBStats(db *sql.DB) error {
	return prometheus.Register(collectors.NewDBStatsCollector(db, "missioncontrol"))
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
