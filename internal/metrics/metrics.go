package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "booking"

// Metrics holds Prometheus metrics for the booking service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// ReservationsCreated is the total number of reservations written, by source.
	ReservationsCreated *prometheus.CounterVec

	// BookingConflicts counts requests refused because the room was taken.
	// stage is "precheck" (found before locking) or "locked" (found under the room lock).
	BookingConflicts *prometheus.CounterVec

	// AvailabilityChecks counts availability evaluations by result or reason.
	AvailabilityChecks *prometheus.CounterVec

	// NotificationsSent counts delivery attempts by outcome and kind.
	NotificationsSent *prometheus.CounterVec

	// NotificationQueueDepth is the number of undelivered outbox jobs.
	NotificationQueueDepth prometheus.Gauge

	// RateLimited counts requests rejected by the rate limiter, by scope.
	RateLimited *prometheus.CounterVec

	// HTTPRequestDuration is the request latency by method, route and status.
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers the metrics with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ReservationsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservations_created_total",
				Help:      "Total number of reservations created",
			},
			[]string{"source"},
		),

		BookingConflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "booking_conflicts_total",
				Help:      "Total number of booking attempts refused for overlapping dates",
			},
			[]string{"stage"},
		),

		AvailabilityChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "availability_checks_total",
				Help:      "Total number of availability checks by result",
			},
			[]string{"result"},
		),

		NotificationsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_sent_total",
				Help:      "Total number of notification delivery attempts",
			},
			[]string{"status", "kind"},
		),

		NotificationQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "notification_queue_depth",
				Help:      "Current number of undelivered notifications",
			},
		),

		RateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_requests_total",
				Help:      "Total number of requests rejected by the rate limiter",
			},
			[]string{"scope"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "route", "status"},
		),
	}
}

// IncReservationCreated increments the created counter for a source
func (m *Metrics) IncReservationCreated(source string) {
	if m == nil {
		return
	}
	m.ReservationsCreated.WithLabelValues(source).Inc()
}

// IncBookingConflict increments the conflict counter for a stage
func (m *Metrics) IncBookingConflict(stage string) {
	if m == nil {
		return
	}
	m.BookingConflicts.WithLabelValues(stage).Inc()
}

// IncAvailabilityCheck records an availability result ("available" or a reason)
func (m *Metrics) IncAvailabilityCheck(result string) {
	if m == nil {
		return
	}
	m.AvailabilityChecks.WithLabelValues(result).Inc()
}

// IncNotification records a delivery attempt outcome
func (m *Metrics) IncNotification(status, kind string) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(status, kind).Inc()
}

// SetQueueDepth sets the current outbox size
func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.NotificationQueueDepth.Set(float64(depth))
}

// IncRateLimited increments the rejected counter for a scope
func (m *Metrics) IncRateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(scope).Inc()
}

// ObserveRequest records one HTTP request duration
func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(seconds)
}
