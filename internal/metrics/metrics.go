// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Job outcomes
const (
	OutcomeSucceeded      = "succeeded"
	OutcomeDownloadFailed = "download_failed"
	OutcomeExtractFailed  = "extract_failed"
	OutcomePublishFailed  = "publish_failed"
	OutcomePanicked       = "panicked"
)

// Pipeline stages
const (
	StageDownload = "download"
	StageExtract  = "extract"
	StagePreview  = "preview"
	StageMetadata = "metadata"
)

// Metrics groups the bridge's collectors on a private registry
type Metrics struct {
	registry        *prometheus.Registry
	webhookRequests *prometheus.CounterVec
	filesQueued     prometheus.Counter
	filesDropped    prometheus.Counter
	resubmitted     prometheus.Counter
	jobs            *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	queueDepth      prometheus.GaugeFunc
}

// New registers the collectors. depth reports the current queue length and
// may be nil.
func New(depth func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		webhookRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clip_bridge_webhook_requests_total",
			Help: "Webhook requests by response code.",
		}, []string{"code"}),
		filesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clip_bridge_files_queued_total",
			Help: "Files accepted into the work queue.",
		}),
		filesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clip_bridge_files_dropped_total",
			Help: "Matching files that could not be queued.",
		}),
		resubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clip_bridge_files_resubmitted_total",
			Help: "Queued files the ledger had already seen before.",
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clip_bridge_jobs_total",
			Help: "Processed files by outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clip_bridge_stage_duration_seconds",
			Help:    "Duration of each processing stage.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
	}
	if depth == nil {
		depth = func() int { return 0 }
	}
	m.queueDepth = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "clip_bridge_queue_depth",
		Help: "Files waiting in the in-memory queue.",
	}, func() float64 { return float64(depth()) })

	m.registry.MustRegister(
		m.webhookRequests,
		m.filesQueued,
		m.filesDropped,
		m.resubmitted,
		m.jobs,
		m.stageDuration,
		m.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WebhookRequest counts one webhook response
func (m *Metrics) WebhookRequest(code int) {
	if m == nil {
		return
	}
	m.webhookRequests.WithLabelValues(strconv.Itoa(code)).Inc()
}

// FilesQueued counts files accepted into the queue
func (m *Metrics) FilesQueued(n int) {
	if m == nil {
		return
	}
	m.filesQueued.Add(float64(n))
}

// FilesDropped counts files the queue refused
func (m *Metrics) FilesDropped(n int) {
	if m == nil {
		return
	}
	m.filesDropped.Add(float64(n))
}

// FileResubmitted counts a queued file that was already in the ledger
func (m *Metrics) FileResubmitted() {
	if m == nil {
		return
	}
	m.resubmitted.Inc()
}

// JobFinished counts one processed file
func (m *Metrics) JobFinished(outcome string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long a stage took since start
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
