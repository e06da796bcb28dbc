package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobSkipped      *prometheus.CounterVec
	upserts         *prometheus.CounterVec
	signals         *prometheus.CounterVec
	lastConfidence  *prometheus.GaugeVec
	providerRetries *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New creates a Prometheus metrics recorder registered on reg (the default registerer when nil).
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		jobRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forexpulse_job_runs_total",
				Help: "Scheduled job runs by outcome",
			},
			[]string{"job", "status"},
		),
		jobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forexpulse_job_duration_seconds",
				Help:    "Duration of scheduled job runs",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"job"},
		),
		jobSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forexpulse_job_skipped_total",
				Help: "Job triggers skipped because a run was in flight or too recent",
			},
			[]string{"job"},
		),
		upserts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forexpulse_upserts_total",
				Help: "Store writes by entity and outcome",
			},
			[]string{"entity", "outcome"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forexpulse_signals_total",
				Help: "Signals generated by instrument and label",
			},
			[]string{"instrument", "label"},
		),
		lastConfidence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forexpulse_signal_confidence",
				Help: "Confidence of the last signal per instrument",
			},
			[]string{"instrument"},
		),
		providerRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forexpulse_provider_retries_total",
				Help: "Provider fetch retries",
			},
			[]string{"provider"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forexpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forexpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordJobRun(job, status string, seconds float64) {
	r.jobRuns.WithLabelValues(job, status).Inc()
	r.jobDuration.WithLabelValues(job).Observe(seconds)
}

func (r *Recorder) RecordJobSkipped(job string) {
	r.jobSkipped.WithLabelValues(job).Inc()
}

func (r *Recorder) RecordUpsert(entity, outcome string) {
	r.upserts.WithLabelValues(entity, outcome).Inc()
}

func (r *Recorder) RecordSignal(instrument, label string, confidence float64) {
	r.signals.WithLabelValues(instrument, label).Inc()
	r.lastConfidence.WithLabelValues(instrument).Set(confidence)
}

func (r *Recorder) RecordProviderRetry(provider string) {
	r.providerRetries.WithLabelValues(provider).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordJobRun(string, string, float64) {}
func (Nop) RecordJobSkipped(string)              {}
func (Nop) RecordUpsert(string, string)          {}
func (Nop) RecordSignal(string, string, float64) {}
func (Nop) RecordProviderRetry(string)           {}
func (Nop) RecordError(string)                   {}
func (Nop) RecordLatency(string, float64)        {}
