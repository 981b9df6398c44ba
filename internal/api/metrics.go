package api

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// metrics holds the service collectors, registered on a private registry.
type metrics struct {
	requests   *prometheus.CounterVec
	processing *prometheus.HistogramVec
	synthesis  *prometheus.CounterVec
}

func newMetrics(reg *prometheus.Registry, breakerState func() float64, queueDepth func() float64) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credisynth_requests_total",
			Help: "Analyze requests by outcome status and payload shape.",
		}, []string{"status", "shape"}),
		processing: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credisynth_processing_time_seconds",
			Help:    "Analyze processing time in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2.5, 10),
		}, []string{"shape"}),
		synthesis: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credisynth_synthesis_total",
			Help: "Qualitative reports by producing source.",
		}, []string{"source", "degraded"}),
	}
	reg.MustRegister(
		m.requests,
		m.processing,
		m.synthesis,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "credisynth_generation_breaker_state",
			Help: "Generation circuit state: 0 closed, 1 half-open, 2 open.",
		}, breakerState),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "credisynth_jobs_queued",
			Help: "Asynchronous analyses waiting for a worker.",
		}, queueDepth),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) observe(status, shape string, elapsed time.Duration) {
	if shape == "" {
		shape = "unknown"
	}
	m.requests.WithLabelValues(status, shape).Inc()
	m.processing.WithLabelValues(shape).Observe(elapsed.Seconds())
}

func (m *metrics) observeSynthesis(source string, degraded bool) {
	m.synthesis.WithLabelValues(source, strconv.FormatBool(degraded)).Inc()
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	}
	return 0
}
