// Package metrics exposes Prometheus metrics for the device identity service.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves a private Prometheus registry.
type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server

	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	leafRequests *prometheus.CounterVec
}

// New creates a metrics server listening on addr. An empty addr disables listening
// but keeps the collectors usable.
func New(namespace, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()

	m := &MetricsServer{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		leafRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaf_csr_total",
			Help:      "Leaf certificate signing requests by outcome.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{
		m.requests,
		m.latency,
		m.leafRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	m.srv = &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return m, nil
}

// Handler returns the Prometheus scrape handler.
func (m *MetricsServer) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *MetricsServer) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveLeafCSR records the outcome of a leaf CSR request.
func (m *MetricsServer) ObserveLeafCSR(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.leafRequests.WithLabelValues(outcome).Inc()
}

// Middleware records request counts and latency labelled by chi route pattern.
func (m *MetricsServer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ListenAndServe serves metrics until Shutdown is called.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown stops the metrics listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
