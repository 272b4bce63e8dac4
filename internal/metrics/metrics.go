// Package metrics exposes Prometheus metrics for the coordinator.
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
	feedConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "workshop_coordinator_feed_connections",
			Help: "Number of open reviewer feed connections",
		},
	)

	approvalsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workshop_coordinator_approvals_submitted_total",
			Help: "Total number of approval requests submitted",
		},
		[]string{"type"},
	)

	approvalDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workshop_coordinator_approval_decisions_total",
			Help: "Total number of approval decisions recorded",
		},
		[]string{"type", "decision"},
	)

	approvalReviewDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workshop_coordinator_approval_review_duration_minutes",
			Help:    "Time from submission to decision in minutes",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 480, 1440, 2880},
		},
		[]string{"type"},
	)

	approvalEscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workshop_coordinator_approval_escalations_total",
			Help: "Total number of approval escalations",
		},
		[]string{"type", "automatic"},
	)

	evolutionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workshop_coordinator_evolution_transitions_total",
			Help: "Total number of evolution phase transitions",
		},
		[]string{"type", "phase"},
	)

	agentAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workshop_coordinator_agent_attempts_total",
			Help: "Total number of agent task delivery attempts",
		},
		[]string{"agent", "status"},
	)

	agentCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workshop_coordinator_agent_call_duration_seconds",
			Help:    "Agent call duration including retries in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		},
		[]string{"agent", "status"},
	)

	notificationsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workshop_coordinator_notifications_dropped_total",
			Help: "Total number of events dropped because the dispatch buffer was full",
		},
	)

	notificationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workshop_coordinator_notification_failures_total",
			Help: "Total number of failed event deliveries per sink",
		},
		[]string{"sink"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workshop_coordinator_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)

// RecordApprovalSubmitted records a new approval request.
func RecordApprovalSubmitted(approvalType string) {
	approvalsSubmittedTotal.WithLabelValues(approvalType).Inc()
}

// RecordApprovalDecision records a reviewer decision and its review time.
func RecordApprovalDecision(approvalType, decision string, reviewMinutes int64) {
	approvalDecisionsTotal.WithLabelValues(approvalType, decision).Inc()
	approvalReviewDuration.WithLabelValues(approvalType).Observe(float64(reviewMinutes))
}

// RecordApprovalEscalation records an escalation.
func RecordApprovalEscalation(approvalType string, automatic bool) {
	approvalEscalationsTotal.WithLabelValues(approvalType, strconv.FormatBool(automatic)).Inc()
}

// RecordEvolutionTransition records entry into a phase.
func RecordEvolutionTransition(evolutionType, phase string) {
	evolutionTransitionsTotal.WithLabelValues(evolutionType, phase).Inc()
}

// RecordAgentAttempt records one delivery attempt.
func RecordAgentAttempt(agent string, success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	agentAttemptsTotal.WithLabelValues(agent, status).Inc()
}

// RecordAgentCall records a finished bridge call.
func RecordAgentCall(agent string, success bool, duration time.Duration) {
	status := "failure"
	if success {
		status = "success"
	}
	agentCallDuration.WithLabelValues(agent, status).Observe(duration.Seconds())
}

// RecordNotificationDropped records an event dropped at dispatch.
func RecordNotificationDropped() {
	notificationsDroppedTotal.Inc()
}

// RecordNotificationFailure records a failed delivery to a sink.
func RecordNotificationFailure(sink string) {
	notificationFailuresTotal.WithLabelValues(sink).Inc()
}

// SetFeedConnections records the number of open reviewer feed connections.
func SetFeedConnections(n int) {
	feedConnections.Set(float64(n))
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(method, route string, status int) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
