package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	inferenceLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askmesh_inference_latency_ms",
			Help:    "Model server generate call latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 20000, 60000, 120000},
		},
		[]string{"variant"},
	)
	inferenceFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askmesh_inference_failures_total",
			Help: "Total number of failed model server calls.",
		},
		[]string{"variant"},
	)
	extractionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askmesh_extraction_total",
			Help: "Total number of model responses reduced to a query, by resulting kind.",
		},
		[]string{"kind"},
	)
	extractionCoercionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askmesh_extraction_coercions_total",
			Help: "Total number of unrecognized documents coerced to a find filter.",
		},
	)
	executionLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askmesh_execution_latency_ms",
			Help:    "Query execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
		[]string{"engine"},
	)
	executionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askmesh_execution_failures_total",
			Help: "Total number of failed query executions by reason.",
		},
		[]string{"engine", "reason"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "askmesh_sessions_active",
			Help: "Current number of live sessions.",
		},
	)
	archiveFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askmesh_archive_failures_total",
			Help: "Total number of result archive writes that failed.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		inferenceLatencyMs,
		inferenceFailuresTotal,
		extractionTotal,
		extractionCoercionsTotal,
		executionLatencyMs,
		executionFailuresTotal,
		sessionsActive,
		archiveFailuresTotal,
	)
}

func ObserveInference(variant string, elapsed time.Duration, err error) {
	inferenceLatencyMs.WithLabelValues(variant).Observe(float64(elapsed.Milliseconds()))
	if err != nil {
		inferenceFailuresTotal.WithLabelValues(variant).Inc()
	}
}

func ObserveExtraction(kind string, coerced bool) {
	extractionTotal.WithLabelValues(kind).Inc()
	if coerced {
		extractionCoercionsTotal.Inc()
	}
}

func ObserveExecution(engine string, elapsed time.Duration, failureReason string) {
	executionLatencyMs.WithLabelValues(engine).Observe(float64(elapsed.Milliseconds()))
	if failureReason != "" {
		executionFailuresTotal.WithLabelValues(engine, failureReason).Inc()
	}
}

func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	sessionsActive.Set(float64(count))
}

func IncrementArchiveFailures() {
	archiveFailuresTotal.Inc()
}
