package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "road_accident"

// Metrics holds the Prometheus collectors of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	RequestCounter    *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	ReportsCreated    *prometheus.CounterVec
	Transitions       *prometheus.CounterVec
	SMSOutcomes       *prometheus.CounterVec
	ClassifierLatency *prometheus.HistogramVec
	EnqueueFailures   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ReportsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reports",
				Name:      "created_total",
				Help:      "Reports accepted at intake, by classifier verdict",
			},
			[]string{"is_accident"},
		),
		Transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reports",
				Name:      "transitions_total",
				Help:      "Review transitions committed, by target status",
			},
			[]string{"to"},
		),
		SMSOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sms",
				Name:      "outcomes_total",
				Help:      "SMS notification outcomes",
			},
			[]string{"outcome"},
		),
		ClassifierLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "classifier",
				Name:      "duration_seconds",
				Help:      "Classifier call duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			},
			[]string{"result"},
		),
		EnqueueFailures: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sms",
				Name:      "enqueue_failures_total",
				Help:      "Notification jobs that could not be queued",
			},
		),
	}
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ReportCreated(isAccident bool) {
	if m == nil {
		return
	}
	m.ReportsCreated.WithLabelValues(strconv.FormatBool(isAccident)).Inc()
}

func (m *Metrics) Transition(to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to).Inc()
}

func (m *Metrics) SMSOutcome(outcome string) {
	if m == nil {
		return
	}
	m.SMSOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Classified(d time.Duration, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.ClassifierLatency.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) EnqueueFailed() {
	if m == nil {
		return
	}
	m.EnqueueFailures.Inc()
}
