package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records crypto checkout submissions.
type PaymentMetrics struct {
	submissions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	stageFail   *prometheus.CounterVec
	fallbacks   prometheus.Counter
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_submissions_total",
		Help:      "Payment submissions by token and outcome.",
	}, []string{"token", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "payment_submission_duration_seconds",
		Help:      "Time from submit to settled outcome.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120},
	}, []string{"token"})
	stageFail := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_stage_failures_total",
		Help:      "Payment failures by pipeline stage.",
	}, []string{"stage"})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oracle_fallback_total",
		Help:      "Times the fallback crypto prices were installed.",
	})
	reg.MustRegister(submissions, duration, stageFail, fallbacks)
	return &PaymentMetrics{
		submissions: submissions,
		duration:    duration,
		stageFail:   stageFail,
		fallbacks:   fallbacks,
	}
}

// ObserveSubmission counts one settled submission and its duration.
func (m *PaymentMetrics) ObserveSubmission(token, outcome string, elapsed time.Duration) {
	if m == nil || m.submissions == nil {
		return
	}
	token = normalizeLabel(token)
	m.submissions.WithLabelValues(token, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(token).Observe(elapsed.Seconds())
}

func (m *PaymentMetrics) IncStageFailure(stage string) {
	if m == nil || m.stageFail == nil {
		return
	}
	m.stageFail.WithLabelValues(normalizeLabel(stage)).Inc()
}

func (m *PaymentMetrics) IncPriceFallback() {
	if m == nil || m.fallbacks == nil {
		return
	}
	m.fallbacks.Inc()
}
