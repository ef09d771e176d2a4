// Package metrics records prometheus metrics for agent calls, report
// transitions, chat traffic and background jobs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns its registry so several instances can coexist in tests.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry          *prometheus.Registry
	agentRequests     *prometheus.CounterVec
	agentDuration     *prometheus.HistogramVec
	reportTransitions *prometheus.CounterVec
	chatMessages      *prometheus.CounterVec
	jobsTotal         *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
}

// NewRecorder creates a recorder with process and Go collectors registered.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		agentRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_requests_total",
				Help: "Outbound AI agent requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		agentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_request_duration_seconds",
				Help:    "Duration of outbound AI agent requests",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"endpoint"},
		),
		reportTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_report_transitions_total",
				Help: "Analysis report status transitions by target status",
			},
			[]string{"status"},
		),
		chatMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_messages_total",
				Help: "Persisted chat messages by role",
			},
			[]string{"role"},
		),
		jobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobs_total",
				Help: "Background job executions by task and outcome",
			},
			[]string{"task", "outcome"},
		),
		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "job_duration_seconds",
				Help:    "Background job execution time",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"task"},
		),
	}
}

// ObserveAgentCall records one outbound agent request.
func (r *Recorder) ObserveAgentCall(endpoint, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.agentRequests.WithLabelValues(endpoint, outcome).Inc()
	r.agentDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// IncReportTransition counts a report entering status.
func (r *Recorder) IncReportTransition(status string) {
	if r == nil {
		return
	}
	r.reportTransitions.WithLabelValues(status).Inc()
}

// IncChatMessage counts a persisted chat message.
func (r *Recorder) IncChatMessage(role string) {
	if r == nil {
		return
	}
	r.chatMessages.WithLabelValues(role).Inc()
}

// ObserveJob records a finished job attempt.
func (r *Recorder) ObserveJob(task, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.jobsTotal.WithLabelValues(task, outcome).Inc()
	r.jobDuration.WithLabelValues(task).Observe(d.Seconds())
}

// Handler exposes the registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests and embedding.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}
