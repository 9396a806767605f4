package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
)

// WorkerMetrics instruments the analysis pipeline. It also implements
// ports.PipelineObserver for per-unit counters.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	jobsTotal      *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobsInFlight   prometheus.Gauge
	queueLag       *prometheus.HistogramVec
	unitsTotal     *prometheus.CounterVec
	casesGenerated *prometheus.CounterVec
	renderFailures *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "figmaqa",
			Subsystem: "worker",
			Name:      "analysis_jobs_total",
			Help:      "Total finished analysis jobs by status.",
		},
		[]string{"service", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "figmaqa",
			Subsystem: "worker",
			Name:      "analysis_job_duration_seconds",
			Help:      "Analysis job duration in seconds by status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		},
		[]string{"service", "status"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "figmaqa",
			Subsystem: "worker",
			Name:      "analysis_jobs_in_flight",
			Help:      "Number of in-flight analysis jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "figmaqa",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between job creation and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	unitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "figmaqa",
			Subsystem: "worker",
			Name:      "analysis_units_total",
			Help:      "Total processed analysis units by level and outcome.",
		},
		[]string{"service", "level", "outcome"},
	)
	casesGenerated := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "figmaqa",
			Subsystem: "worker",
			Name:      "cases_generated_total",
			Help:      "Total generated test cases by level.",
		},
		[]string{"service", "level"},
	)
	renderFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "figmaqa",
			Subsystem: "worker",
			Name:      "render_failures_total",
			Help:      "Total frames that failed to render after retries.",
		},
		[]string{"service"},
	)

	registry.MustRegister(jobsTotal, jobDuration, jobsInFlight, queueLag, unitsTotal, casesGenerated, renderFailures)

	return &WorkerMetrics{
		registry:       registry,
		service:        service,
		jobsTotal:      jobsTotal,
		jobDuration:    jobDuration,
		jobsInFlight:   jobsInFlight,
		queueLag:       queueLag,
		unitsTotal:     unitsTotal,
		casesGenerated: casesGenerated,
		renderFailures: renderFailures,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.jobsInFlight.Inc()
}

func (m *WorkerMetrics) FinishJob(duration time.Duration, err error) {
	m.jobsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.jobsTotal.WithLabelValues(m.service, status).Inc()
	m.jobDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) UnitProcessed(level domain.AnalysisLevel, cases int) {
	m.unitsTotal.WithLabelValues(m.service, string(level), "processed").Inc()
	if cases > 0 {
		m.casesGenerated.WithLabelValues(m.service, string(level)).Add(float64(cases))
	}
}

func (m *WorkerMetrics) UnitSkipped(level domain.AnalysisLevel) {
	m.unitsTotal.WithLabelValues(m.service, string(level), "skipped").Inc()
}

func (m *WorkerMetrics) RenderFailures(count int) {
	if count <= 0 {
		return
	}
	m.renderFailures.WithLabelValues(m.service).Add(float64(count))
}
