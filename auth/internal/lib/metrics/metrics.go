package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestDuration *prometheus.HistogramVec
	ErrorCounter    *prometheus.CounterVec
	AuthEvents      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "auth",
			Name:      "request_duration_seconds",
			Help:      "Duration of handled requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transport", "route", "status"}),
		ErrorCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "errors_total",
			Help:      "Requests answered with an error code.",
		}, []string{"transport", "code"}),
		AuthEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "events_total",
			Help:      "Token lifecycle events by outcome.",
		}, []string{"event", "result"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestDuration,
		m.ErrorCounter,
		m.AuthEvents,
	)

	return m
}

// Event counts one lifecycle event, e.g. Event("login", "ok").
func (m *Metrics) Event(event, result string) {
	m.AuthEvents.WithLabelValues(event, result).Inc()
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
