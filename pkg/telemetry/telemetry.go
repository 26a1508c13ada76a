// Package telemetry exposes Prometheus collectors for the billing service.
// A nil *Collector is valid and records nothing.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeIgnored  = "ignored"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeRetry    = "retry"
	OutcomeDiscard  = "discarded"
)

type Config struct {
	Namespace string `env:"METRICS_NAMESPACE" envDefault:"billingkit"`
}

// Collector owns a private registry with the service's metric vectors.
type Collector struct {
	registry *prometheus.Registry

	webhookEvents *prometheus.CounterVec
	jobRuns       *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	documentRuns  *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

func New(cfg Config) *Collector {
	ns := cfg.Namespace
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "webhook_events_total",
			Help:      "Billing webhook deliveries by provider, event type and outcome.",
		}, []string{"provider", "event_type", "outcome"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "job_runs_total",
			Help:      "Background job executions by task and outcome.",
		}, []string{"task", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "job_duration_seconds",
			Help:      "Background job execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
		documentRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "documents_generated_total",
			Help:      "PDF generations by document kind and outcome.",
		}, []string{"kind", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.webhookEvents,
		c.jobRuns,
		c.jobDuration,
		c.documentRuns,
		c.httpRequests,
		c.httpDuration,
		prometheus.NewGoCollector(),
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) WebhookEvent(provider, eventType, outcome string) {
	if c == nil {
		return
	}
	c.webhookEvents.WithLabelValues(provider, eventType, outcome).Inc()
}

func (c *Collector) JobRun(task, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.jobRuns.WithLabelValues(task, outcome).Inc()
	c.jobDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (c *Collector) DocumentGenerated(kind, outcome string) {
	if c == nil {
		return
	}
	c.documentRuns.WithLabelValues(kind, outcome).Inc()
}

func (c *Collector) HTTPRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
