package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// Every method is safe on a nil receiver so components can run without metrics.
type Metrics struct {
	// Fills by template type
	FillsTotal *prometheus.CounterVec

	// Filled share of mapped fields per fill
	FillCoverage *prometheus.HistogramVec

	// Per-field errors accumulated by fills
	FieldErrors *prometheus.CounterVec

	// Record + template fetch and fill
	GenerateLatency *prometheus.HistogramVec

	// Worker pass outcomes: completed, retrying, failed, idle
	JobOutcomes *prometheus.CounterVec

	// Lock manager results by operation and reason
	LockResults *prometheus.CounterVec

	// Requests rejected after too many failed authentications
	AttemptRejections prometheus.Counter

	// Job lifecycle events that could not be published
	EventPublishFailures prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FillsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "casedocs_pdf_fills_total",
			Help: "Total PDF template fills by template type",
		}, []string{"template"}),

		FillCoverage: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "casedocs_pdf_fill_coverage_percent",
			Help:    "Percentage of mapped fields filled per fill",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}, []string{"template"}),

		FieldErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "casedocs_pdf_field_errors_total",
			Help: "Per-field fill errors by template type",
		}, []string{"template"}),

		GenerateLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "casedocs_pdf_generate_duration_seconds",
			Help:    "Duration of record and template fetch plus fill",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"template"}),

		JobOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "casedocs_jobs_outcomes_total",
			Help: "Worker pass outcomes",
		}, []string{"outcome"}),

		LockResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "casedocs_document_lock_results_total",
			Help: "Document lock results by operation and reason",
		}, []string{"operation", "reason"}),

		AttemptRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "casedocs_auth_attempt_rejections_total",
			Help: "Requests rejected after exceeding the failed authentication limit",
		}),

		EventPublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "casedocs_job_event_publish_failures_total",
			Help: "Job lifecycle events that failed to publish",
		}),
	}
}

// ObserveFill records one fill's coverage and error count.
func (m *Metrics) ObserveFill(template string, coverage, fieldErrors int) {
	if m == nil {
		return
	}
	m.FillsTotal.WithLabelValues(template).Inc()
	m.FillCoverage.WithLabelValues(template).Observe(float64(coverage))
	if fieldErrors > 0 {
		m.FieldErrors.WithLabelValues(template).Add(float64(fieldErrors))
	}
}

func (m *Metrics) ObserveGenerateLatency(template string, d time.Duration) {
	if m != nil {
		m.GenerateLatency.WithLabelValues(template).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementJobOutcome(outcome string) {
	if m != nil {
		m.JobOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementLockResult(operation, reason string) {
	if m != nil {
		m.LockResults.WithLabelValues(operation, reason).Inc()
	}
}

func (m *Metrics) IncrementAttemptRejections() {
	if m != nil {
		m.AttemptRejections.Inc()
	}
}

func (m *Metrics) IncrementEventPublishFailures() {
	if m != nil {
		m.EventPublishFailures.Inc()
	}
}
