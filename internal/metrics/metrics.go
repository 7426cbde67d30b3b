package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "supperclub"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	wizardTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wizard_transitions_total",
			Help:      "Wizard transitions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	bookingsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_submitted_total",
			Help:      "Bookings saved from the wizard by session type.",
		},
		[]string{"session"},
	)

	saveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_save_seconds",
			Help:      "Time spent persisting a submitted booking.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, wizardTransitions, bookingsSubmitted, saveDuration)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncWizardTransition counts a wizard action (next, previous, jump, submit,
// lookup, close) with its outcome (ok, invalid, locked, error).
func IncWizardTransition(action, outcome string) {
	wizardTransitions.WithLabelValues(action, outcome).Inc()
}

func IncBookingSubmitted(session string) {
	bookingsSubmitted.WithLabelValues(session).Inc()
}

func ObserveSave(d time.Duration) {
	saveDuration.Observe(d.Seconds())
}
