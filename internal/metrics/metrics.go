// Package metrics provides Prometheus metrics for the jetstream services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jserrors "github.com/p-blackswan/jetstream/internal/errors"
)

// Metrics holds all Prometheus metrics for one process.
type Metrics struct {
	FlowRequests       *prometheus.CounterVec
	FlowDuration       *prometheus.HistogramVec
	AnalysisTasks      *prometheus.CounterVec
	AnalysisQueueDepth prometheus.Gauge
	StatusWriteErrors  prometheus.Counter
	ModelCalls         *prometheus.CounterVec
	StatusPolls        *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		FlowRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jetstream_flow_requests_total",
				Help: "Orchestrator requests by flow and response status.",
			},
			[]string{"flow", "status"},
		),
		FlowDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jetstream_flow_duration_seconds",
				Help:    "Orchestrator request duration by flow.",
				Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"flow"},
		),
		AnalysisTasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jetstream_analysis_tasks_total",
				Help: "Background analyses by outcome.",
			},
			[]string{"outcome"},
		),
		AnalysisQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "jetstream_analysis_queue_depth",
				Help: "Analyses waiting for a worker.",
			},
		),
		StatusWriteErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "jetstream_status_writes_failed_total",
				Help: "Task status writes that failed and were dropped.",
			},
		),
		ModelCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jetstream_model_calls_total",
				Help: "Generative model calls by purpose and result.",
			},
			[]string{"purpose", "result"},
		),
		StatusPolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jetstream_status_polls_total",
				Help: "Status checker polls by whether a record was found.",
			},
			[]string{"found"},
		),
		registry: reg,
	}

	reg.MustRegister(m.FlowRequests)
	reg.MustRegister(m.FlowDuration)
	reg.MustRegister(m.AnalysisTasks)
	reg.MustRegister(m.AnalysisQueueDepth)
	reg.MustRegister(m.StatusWriteErrors)
	reg.MustRegister(m.ModelCalls)
	reg.MustRegister(m.StatusPolls)
	reg.MustRegister(collectors.NewGoCollector())

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordFlow counts one orchestrator response and its duration.
func (m *Metrics) RecordFlow(flow string, status int, seconds float64) {
	m.FlowRequests.WithLabelValues(flow, statusClass(status)).Inc()
	m.FlowDuration.WithLabelValues(flow).Observe(seconds)
}

// RecordAnalysis counts a finished background analysis.
func (m *Metrics) RecordAnalysis(outcome string) {
	m.AnalysisTasks.WithLabelValues(outcome).Inc()
}

// SetQueueDepth sets the number of queued analyses.
func (m *Metrics) SetQueueDepth(n int) {
	m.AnalysisQueueDepth.Set(float64(n))
}

// RecordStatusWriteError counts a dropped status write.
func (m *Metrics) RecordStatusWriteError() {
	m.StatusWriteErrors.Inc()
}

// RecordModelCall counts a model call, labelled "ok", "transient" or "error".
func (m *Metrics) RecordModelCall(purpose string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case jserrors.IsTransient(err):
		result = "transient"
	default:
		result = "error"
	}
	m.ModelCalls.WithLabelValues(purpose, result).Inc()
}

// RecordStatusPoll counts a status checker lookup.
func (m *Metrics) RecordStatusPoll(found bool) {
	if found {
		m.StatusPolls.WithLabelValues("true").Inc()
		return
	}
	m.StatusPolls.WithLabelValues("false").Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
