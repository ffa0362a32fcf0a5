/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Seednode/mash/elimination"
	"github.com/Seednode/mash/plan"
)

const metricsNamespace = "mash"

// Metrics lives on its own registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	eliminations     prometheus.Counter
	eliminationSteps prometheus.Histogram
	anomalies        *prometheus.CounterVec

	planRequests *prometheus.CounterVec
	planLatency  prometheus.Histogram

	sessions prometheus.Gauge
	replays  prometheus.Counter
}

func newMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	auto := promauto.With(m.registry)

	m.eliminations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "eliminations_total",
		Help:      "Total number of elimination rounds run",
	})

	m.eliminationSteps = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "elimination_steps",
		Help:      "Number of candidates removed per elimination round",
		Buckets:   []float64{0, 6, 12, 18, 24, 50, 100, 500, elimination.MaxSteps},
	})

	m.anomalies = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "elimination_anomalies_total",
		Help:      "Elimination rounds that hit the step limit or had to escape a stall",
	}, []string{"kind"})

	m.planRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "plan_requests_total",
		Help:      "Plan generation requests by outcome",
	}, []string{"outcome"})

	m.planLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "plan_duration_seconds",
		Help:      "Time spent waiting on the plan generator",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
	})

	m.sessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "sessions_active",
		Help:      "Quiz sessions currently held in memory",
	})

	m.replays = auto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "replays_total",
		Help:      "Elimination replays streamed over websockets",
	})

	return m
}

func (m *Metrics) observeElimination(r elimination.Result) {
	m.eliminations.Inc()
	m.eliminationSteps.Observe(float64(len(r.Steps)))

	if r.Truncated {
		m.anomalies.WithLabelValues("cutoff").Inc()
	}
	if r.Stalls > 0 {
		m.anomalies.WithLabelValues("stall").Add(float64(r.Stalls))
	}
}

func (m *Metrics) observePlan(err error, elapsed time.Duration) {
	m.planLatency.Observe(elapsed.Seconds())

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, plan.ErrValidation):
		outcome = "invalid"
	case errors.Is(err, plan.ErrUpstreamConfiguration):
		outcome = "unconfigured"
	default:
		outcome = "failed"
	}

	m.planRequests.WithLabelValues(outcome).Inc()
}

func serveMetrics(m *Metrics) httprouter.Handle {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h.ServeHTTP(w, r)
	}
}
