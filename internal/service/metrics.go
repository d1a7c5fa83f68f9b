package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "recanalysis"

var (
	// Labels: form_type
	jobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "jobs",
			Name:      "submitted_total",
			Help:      "Analysis jobs accepted for processing",
		},
		[]string{"form_type"},
	)

	// Labels: status (ready, failed), kind (failure kind, empty when ready)
	jobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Analysis jobs that reached a terminal state",
		},
		[]string{"status", "kind"},
	)

	jobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "jobs",
			Name:      "in_flight",
			Help:      "Extractions currently running",
		},
	)

	extractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "extraction_duration_seconds",
			Help:      "End to end extraction time per job",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 60, 90, 120, 180},
		},
		[]string{"form_type"},
	)

	// Labels: backend, result (ok, transport, timeout, status, malformed)
	backendCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "backend",
			Name:      "calls_total",
			Help:      "Generation backend attempts by outcome",
		},
		[]string{"backend", "result"},
	)

	// Labels: source (snapshot, fresh)
	policyIndexBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "policy_index",
			Name:      "loads_total",
			Help:      "Policy index loads by source",
		},
		[]string{"source"},
	)

	// Labels: result (recorded, unchanged, failed)
	feedbackWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "feedback",
			Name:      "finalizations_total",
			Help:      "Finalizations by feedback outcome",
		},
		[]string{"result"},
	)

	// Labels: result (ok, error)
	renderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "renderer",
			Name:      "requests_total",
			Help:      "Document rendering requests by outcome",
		},
		[]string{"result"},
	)
)
