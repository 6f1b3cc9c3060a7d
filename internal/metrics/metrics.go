package metrics

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service counters on their own registry.
type Metrics struct {
	registry    *prometheus.Registry
	Validations *prometheus.CounterVec
	Analyses    *prometheus.CounterVec
	Webhooks    *prometheus.CounterVec
	Upstream    *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "palmistry_validation_total",
			Help: "Palm validations by verdict source.",
		}, []string{"verdict"}),
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "palmistry_analysis_total",
			Help: "Analysis requests by outcome.",
		}, []string{"outcome"}),
		Webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "palmistry_webhook_events_total",
			Help: "Payment webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		Upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "palmistry_upstream_duration_seconds",
			Help:    "Completion API latency.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
		}, []string{"call"}),
	}
	m.registry.MustRegister(
		m.Validations, m.Analyses, m.Webhooks, m.Upstream,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry on a Fiber route.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
