package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sla_escalation"

// Metrics holds the service collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec

	scanRuns           *prometheus.CounterVec
	scanDuration       prometheus.Histogram
	scanTicketsChecked prometheus.Counter
	scanTicketErrors   prometheus.Counter
	violations         *prometheus.CounterVec

	escalationTransitions *prometheus.CounterVec
	acceptConflicts       prometheus.Counter
	expirySwept           prometheus.Counter

	notifications        *prometheus.CounterVec
	notificationFailures *prometheus.CounterVec
	pushSubscribers      prometheus.Gauge
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Error responses by route, method and error code.",
		}, []string{"route", "method", "code"}),
		scanRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_scan_runs_total",
			Help:      "Violation scanner passes by result.",
		}, []string{"result"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sla_scan_duration_seconds",
			Help:      "Duration of violation scanner passes.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		scanTicketsChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_scan_tickets_checked_total",
			Help:      "Tickets evaluated by the violation scanner.",
		}),
		scanTicketErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_scan_ticket_errors_total",
			Help:      "Per-ticket persistence failures during scanner passes.",
		}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_violations_recorded_total",
			Help:      "SLA violations recorded by type.",
		}, []string{"type"}),
		escalationTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_transitions_total",
			Help:      "Escalation queue transitions by target state.",
		}, []string{"transition"}),
		acceptConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_accept_conflicts_total",
			Help:      "Accept calls that lost the race for a queue item.",
		}),
		expirySwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_expired_total",
			Help:      "Queue items expired by the sweep.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Escalation notifications written by type.",
		}, []string{"type"}),
		notificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Escalation notifications that could not be written.",
		}, []string{"type"}),
		pushSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "push_subscribers",
			Help:      "Open push subscriptions on this instance.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.errors,
		m.scanRuns,
		m.scanDuration,
		m.scanTicketsChecked,
		m.scanTicketErrors,
		m.violations,
		m.escalationTransitions,
		m.acceptConflicts,
		m.expirySwept,
		m.notifications,
		m.notificationFailures,
		m.pushSubscribers,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// ObserveScan records one scanner pass.
func (m *Metrics) ObserveScan(duration time.Duration, ticketsChecked, ticketErrors int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.scanRuns.WithLabelValues(result).Inc()
	m.scanDuration.Observe(duration.Seconds())
	m.scanTicketsChecked.Add(float64(ticketsChecked))
	m.scanTicketErrors.Add(float64(ticketErrors))
}

// RecordScanSkipped counts ticks where another instance held the scan lease.
func (m *Metrics) RecordScanSkipped() {
	if m == nil {
		return
	}
	m.scanRuns.WithLabelValues("skipped").Inc()
}

// RecordViolation counts a recorded violation.
func (m *Metrics) RecordViolation(violationType string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(violationType).Inc()
}

// RecordEscalationTransition counts a queue item entering a state.
func (m *Metrics) RecordEscalationTransition(transition string) {
	if m == nil {
		return
	}
	m.escalationTransitions.WithLabelValues(transition).Inc()
}

// RecordAcceptConflict counts a lost accept race.
func (m *Metrics) RecordAcceptConflict() {
	if m == nil {
		return
	}
	m.acceptConflicts.Inc()
}

// RecordExpired counts items moved to expired by a sweep.
func (m *Metrics) RecordExpired(count int) {
	if m == nil {
		return
	}
	m.expirySwept.Add(float64(count))
}

// RecordNotification counts a notification write by outcome.
func (m *Metrics) RecordNotification(notificationType string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.notificationFailures.WithLabelValues(notificationType).Inc()
		return
	}
	m.notifications.WithLabelValues(notificationType).Inc()
}

// PushSubscribed tracks open push subscriptions.
func (m *Metrics) PushSubscribed(delta int) {
	if m == nil {
		return
	}
	m.pushSubscribers.Add(float64(delta))
}
