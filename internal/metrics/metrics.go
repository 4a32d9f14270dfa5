package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nftforge/internal/domain"
	"nftforge/internal/mint"
)

// Collector exports workflow and HTTP metrics.
type Collector struct {
	registry *prometheus.Registry

	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	stageTime   *prometheus.HistogramVec
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nftforge",
			Name:      "workflow_transitions_total",
			Help:      "Workflow state transitions by target stage.",
		}, []string{"stage"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nftforge",
			Name:      "workflow_failures_total",
			Help:      "Failed workflows by error kind.",
		}, []string{"kind"}),
		stageTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nftforge",
			Name:      "workflow_stage_seconds",
			Help:      "Time spent in each workflow stage.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nftforge",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nftforge",
			Name:      "http_request_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		c.transitions,
		c.failures,
		c.stageTime,
		c.requests,
		c.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler serves the collected metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Follow records transitions of one workflow until its stream closes.
func (c *Collector) Follow(events <-chan mint.Event) {
	var prev *mint.Event
	for ev := range events {
		ev := ev
		if prev != nil {
			c.transitions.WithLabelValues(string(ev.State.Stage)).Inc()
			if prev.State.Stage.InFlight() {
				c.stageTime.WithLabelValues(string(prev.State.Stage)).Observe(ev.UpdatedAt.Sub(prev.UpdatedAt).Seconds())
			}
			if ev.State.Stage == domain.StageFailed {
				c.failures.WithLabelValues(ErrorKind(ev.State.Err)).Inc()
			}
		}
		prev = &ev
	}
}

// ErrorKind maps an error to its taxonomy label.
func ErrorKind(err error) string {
	var (
		validation *domain.ValidationError
		generation *domain.GenerationError
		storage    *domain.StorageError
		signing    *domain.SigningError
		minting    *domain.MintError
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &generation):
		return "generation"
	case errors.As(err, &storage):
		return "storage"
	case errors.As(err, &signing):
		return "signing"
	case errors.As(err, &minting):
		return "mint"
	default:
		return "other"
	}
}

// Middleware records request counts and latency labelled by chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
