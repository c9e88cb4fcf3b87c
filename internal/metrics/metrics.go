// Package metrics exposes the engine's Prometheus collectors: HTTP traffic,
// execution outcomes, sandbox population, and proxy upstream latency.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds every collector the engine registers.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "execforge",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "execforge",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "execforge",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	executions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "execforge",
		Subsystem: "execution",
		Name:      "runs_total",
		Help:      "Total number of code executions, labeled by activation mode and outcome.",
	}, []string{"mode", "status"})

	executionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "execforge",
		Subsystem: "execution",
		Name:      "duration_seconds",
		Help:      "Duration of code executions.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"mode"})

	sandboxesActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "execforge",
		Subsystem: "sandbox",
		Name:      "active",
		Help:      "Current number of live sandboxes.",
	})

	imageBuilds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "execforge",
		Subsystem: "image",
		Name:      "builds_total",
		Help:      "Total number of image build attempts.",
	}, []string{"status"})

	proxyUpstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "execforge",
		Subsystem: "proxy",
		Name:      "upstream_duration_seconds",
		Help:      "Duration of proxied upstream requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"framework", "status"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		executions,
		executionDuration,
		sandboxesActive,
		imageBuilds,
		proxyUpstreamDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordExecution records an execution outcome for a given activation mode
// ("oneshot", "webservice", "cron", "webhook", "service").
func RecordExecution(mode, status string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	executions.WithLabelValues(mode, status).Inc()
	executionDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// SetSandboxesActive updates the live sandbox gauge.
func SetSandboxesActive(n int) {
	sandboxesActive.Set(float64(n))
}

// RecordImageBuild records an image build attempt outcome ("hit", "built", "failed").
func RecordImageBuild(status string) {
	imageBuilds.WithLabelValues(status).Inc()
}

// RecordProxyUpstream records a proxied upstream request's duration.
func RecordProxyUpstream(framework, status string, duration time.Duration) {
	proxyUpstreamDuration.WithLabelValues(framework, status).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 {
		return "/"
	}
	switch parts[0] {
	case "proxy", "containers", "jobs", "webhook-jobs", "webhook", "services", "env", "logs":
		if len(parts) == 1 {
			return "/" + parts[0]
		}
		return "/" + parts[0] + "/:id"
	default:
		return "/" + parts[0]
	}
}
