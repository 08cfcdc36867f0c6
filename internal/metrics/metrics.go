package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Booking outcomes
const (
	BookingCreated     = "created"
	BookingUnavailable = "unavailable"
	BookingInvalid     = "invalid"
	BookingError       = "error"
)

// Notification outcomes
const (
	NotificationSent    = "sent"
	NotificationSkipped = "skipped"
	NotificationFailed  = "failed"
)

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	Bookings       *prometheus.CounterVec
	BookingLatency prometheus.Histogram
	Transitions    *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
	SlotQueries    *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Bookings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"result"}),
		BookingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_duration_seconds",
			Help:      "Time spent in the booking critical section",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_transitions_total",
			Help:      "Applied appointment status transitions",
		}, []string{"from", "to", "trigger"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification dispatch attempts by kind and outcome",
		}, []string{"kind", "result"}),
		SlotQueries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_queries_total",
			Help:      "Slot resolution requests by audience",
		}, []string{"audience"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) ObserveBooking(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.Bookings.WithLabelValues(result).Inc()
	if result == BookingCreated {
		m.BookingLatency.Observe(took.Seconds())
	}
}

func (m *Metrics) ObserveTransition(from, to, trigger string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to, trigger).Inc()
}

func (m *Metrics) ObserveNotification(kind, result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveSlotQuery(audience string) {
	if m == nil {
		return
	}
	m.SlotQueries.WithLabelValues(audience).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(took.Seconds())
}
