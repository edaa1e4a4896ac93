// Package metrics holds the prometheus collectors of the decomposition loop
// and the HTTP API. They register on the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Iterations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pddd_iterations_total",
		Help: "Forward/backward iterations completed",
	})
	StageSolves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pddd_stage_solves_total",
		Help: "Stage subproblem solves by pass and outcome",
	}, []string{"pass", "outcome"})
	StageSolveSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pddd_stage_solve_seconds",
		Help:    "Stage subproblem solve latency",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"pass"})
	Gap = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pddd_bound_gap",
		Help: "|ZSUP-ZINF| after the latest bound check",
	})
	CutPool = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pddd_cut_pool_size",
		Help: "Cuts in the pool of the latest run",
	})
	Runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pddd_runs_total",
		Help: "Decomposition runs by result",
	}, []string{"result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"method", "route", "status"})
	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Stage solve outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
