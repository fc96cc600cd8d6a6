// Package monitoring exposes Prometheus metrics for the rent API and
// watches the model artifacts on disk.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "swissrelocator"

// Prediction outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	predictions     *prometheus.CounterVec
	predictedRent   *prometheus.HistogramVec
	artifactsLoaded *prometheus.GaugeVec
	artifactChanges *prometheus.CounterVec
}

// NewMetrics registers the service collectors plus the Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Rent predictions by city and outcome.",
		}, []string{"city", "outcome"}),
		predictedRent: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "predicted_rent_chf",
			Help:      "Distribution of predicted monthly rents in CHF.",
			Buckets:   []float64{500, 1000, 2000, 4000, 8000, 16000, 32000},
		}, []string{"city"}),
		artifactsLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifact_loaded",
			Help:      "1 when the artifact loaded at startup.",
		}, []string{"artifact"}),
		artifactChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_changes_total",
			Help:      "Changes to artifact files seen after startup.",
		}, []string{"artifact"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.predictions,
		m.predictedRent,
		m.artifactsLoaded,
		m.artifactChanges,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObservePrediction counts a prediction outcome. rent is only recorded on
// success.
func (m *Metrics) ObservePrediction(city, outcome string, rent float64) {
	m.predictions.WithLabelValues(city, outcome).Inc()
	if outcome == OutcomeSuccess {
		m.predictedRent.WithLabelValues(city).Observe(rent)
	}
}

// SetArtifactsLoaded publishes which artifacts are present.
func (m *Metrics) SetArtifactsLoaded(model, scaler, features bool) {
	m.artifactsLoaded.WithLabelValues("model").Set(gauge(model))
	m.artifactsLoaded.WithLabelValues("scaler").Set(gauge(scaler))
	m.artifactsLoaded.WithLabelValues("features").Set(gauge(features))
}

// ArtifactChanged counts a change to the named artifact file.
func (m *Metrics) ArtifactChanged(name string) {
	m.artifactChanges.WithLabelValues(name).Inc()
}

func gauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
