// Package telemetry is the side channel for pipeline errors and counters.
package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "grawler"

// Metrics holds the pipeline's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ArticlesInserted prometheus.Counter
	ItemsDropped     *prometheus.CounterVec
	ContextsCreated  *prometheus.CounterVec
	MediaUploads     *prometheus.CounterVec
	Errors           *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ArticlesInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_inserted_total",
			Help:      "Articles written by feed ingestion.",
		}),
		ItemsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_items_dropped_total",
			Help:      "Feed items discarded before insertion, by reason.",
		}, []string{"reason"}),
		ContextsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contexts_created_total",
			Help:      "Article contexts appended, by version.",
		}, []string{"version"}),
		MediaUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_uploads_total",
			Help:      "Media offload attempts, by result.",
		}, []string{"result"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors reported to telemetry, by stage and severity.",
		}, []string{"stage", "severity"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"stage"}),
	}

	reg.MustRegister(m.ArticlesInserted, m.ItemsDropped, m.ContextsCreated,
		m.MediaUploads, m.Errors, m.StageDuration)
	return m
}

// Registry exposes the underlying registry (for tests and exporters).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) AddArticlesInserted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ArticlesInserted.Add(float64(n))
}

func (m *Metrics) ItemDropped(reason string) {
	if m == nil {
		return
	}
	m.ItemsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ContextCreated(version int) {
	if m == nil {
		return
	}
	m.ContextsCreated.WithLabelValues(strconv.Itoa(version)).Inc()
}

func (m *Metrics) MediaUpload(ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "ok"
	}
	m.MediaUploads.WithLabelValues(result).Inc()
}

func (m *Metrics) errorReported(stage, severity string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(stage, severity).Inc()
}

// ObserveStage records how long a stage ran.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Push sends the current values to a Prometheus Pushgateway. Batch jobs call it once per run.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if m == nil || gatewayURL == "" {
		return nil
	}
	if err := push.New(gatewayURL, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
