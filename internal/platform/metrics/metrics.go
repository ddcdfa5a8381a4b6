package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters for the clip gateway.
type Metrics struct {
	registry           *prometheus.Registry
	requestsTotal      prometheus.Counter
	jobsSubmittedTotal prometheus.Counter
	segmentsReadyTotal prometheus.Counter
	pollTimeoutsTotal  prometheus.Counter
	tokensIssuedTotal  prometheus.Counter
	edgeDenialsTotal   prometheus.Counter
	errorsTotal        prometheus.Counter
}

// New creates and registers Prometheus metrics for the gateway.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clipgw_requests_total",
		Help: "Total number of HTTP requests received",
	})
	jobsSubmittedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clipgw_jobs_submitted_total",
		Help: "Total number of clip transcode jobs submitted",
	})
	segmentsReadyTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clipgw_segments_ready_total",
		Help: "Total number of segment requests answered with a ready artifact",
	})
	pollTimeoutsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clipgw_poll_timeouts_total",
		Help: "Total number of segment requests that exhausted the poll budget",
	})
	tokensIssuedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clipgw_tokens_issued_total",
		Help: "Total number of access tokens issued",
	})
	edgeDenialsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clipgw_edge_denials_total",
		Help: "Total number of requests denied at the edge",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clipgw_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		requestsTotal,
		jobsSubmittedTotal,
		segmentsReadyTotal,
		pollTimeoutsTotal,
		tokensIssuedTotal,
		edgeDenialsTotal,
		errorsTotal,
	)

	return &Metrics{
		registry:           registry,
		requestsTotal:      requestsTotal,
		jobsSubmittedTotal: jobsSubmittedTotal,
		segmentsReadyTotal: segmentsReadyTotal,
		pollTimeoutsTotal:  pollTimeoutsTotal,
		tokensIssuedTotal:  tokensIssuedTotal,
		edgeDenialsTotal:   edgeDenialsTotal,
		errorsTotal:        errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncJobsSubmitted increments the submitted-jobs counter.
func (m *Metrics) IncJobsSubmitted() {
	m.jobsSubmittedTotal.Inc()
}

// IncSegmentsReady increments the ready-segments counter.
func (m *Metrics) IncSegmentsReady() {
	m.segmentsReadyTotal.Inc()
}

// IncPollTimeouts increments the poll-budget-exhausted counter.
func (m *Metrics) IncPollTimeouts() {
	m.pollTimeoutsTotal.Inc()
}

// IncTokensIssued increments the issued-tokens counter.
func (m *Metrics) IncTokensIssued() {
	m.tokensIssuedTotal.Inc()
}

// IncEdgeDenials increments the edge-denials counter.
func (m *Metrics) IncEdgeDenials() {
	m.edgeDenialsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
