// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector the service updates.
type Metrics struct {
	reg *prometheus.Registry

	Transitions   *prometheus.CounterVec
	JobRuns       *prometheus.CounterVec
	JobRecords    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
	Notifications *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	TokenFailures *prometheus.CounterVec
}

// New registers the collectors on a fresh registry together with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warranty",
			Name:      "transitions_total",
			Help:      "Lifecycle transitions committed, by record type and edge.",
		}, []string{"record_type", "from", "to", "trigger"}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warranty",
			Name:      "scheduler_runs_total",
			Help:      "Scheduler job runs by outcome.",
		}, []string{"job", "outcome"}),
		JobRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warranty",
			Name:      "scheduler_records_total",
			Help:      "Records handled by scheduler jobs, by result.",
		}, []string{"job", "result"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "warranty",
			Name:      "scheduler_run_seconds",
			Help:      "Scheduler job run duration.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"job"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warranty",
			Name:      "notifications_total",
			Help:      "Notification dispatch attempts by kind, channel and result.",
		}, []string{"kind", "channel", "result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warranty",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "warranty",
			Name:      "http_request_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		TokenFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warranty",
			Name:      "token_failures_total",
			Help:      "Rejected confirmation tokens by purpose and reason.",
		}, []string{"purpose", "reason"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Transitions, m.JobRuns, m.JobRecords, m.JobDuration,
		m.Notifications, m.HTTPRequests, m.HTTPDuration, m.TokenFailures,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry exposes the underlying registry; tests gather from it.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveTransition counts one committed transition. Safe on a nil receiver.
func (m *Metrics) ObserveTransition(recordType, from, to, trigger string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(recordType, from, to, trigger).Inc()
}

// ObserveJob records one scheduler run. Safe on a nil receiver.
func (m *Metrics) ObserveJob(job, outcome string, processed, skipped, failed int, took time.Duration) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job, outcome).Inc()
	m.JobRecords.WithLabelValues(job, "processed").Add(float64(processed))
	m.JobRecords.WithLabelValues(job, "skipped").Add(float64(skipped))
	m.JobRecords.WithLabelValues(job, "failed").Add(float64(failed))
	m.JobDuration.WithLabelValues(job).Observe(took.Seconds())
}

// ObserveNotification counts one dispatch attempt. Safe on a nil receiver.
func (m *Metrics) ObserveNotification(kind, channel, result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind, channel, result).Inc()
}

// ObserveHTTP records one served request. Safe on a nil receiver.
func (m *Metrics) ObserveHTTP(route, method, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(took.Seconds())
}

// ObserveTokenFailure counts a rejected token. Safe on a nil receiver.
func (m *Metrics) ObserveTokenFailure(purpose, reason string) {
	if m == nil {
		return
	}
	m.TokenFailures.WithLabelValues(purpose, reason).Inc()
}
