package lookupd

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements the Metrics interface using Prometheus
type PrometheusMetrics struct {
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance.
// If registry is nil, a fresh registry is created.
func NewPrometheusMetrics(registry *prometheus.Registry) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	pm := &PrometheusMetrics{
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		registry:   registry,
	}

	pm.registerDefaultMetrics()
	return pm
}

// registerDefaultMetrics registers all standard lookupd metrics
func (p *PrometheusMetrics) registerDefaultMetrics() {
	p.counters[MetricSagaSuccess] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookupd",
			Subsystem: "saga",
			Name:      "success_total",
			Help:      "Dual-write sagas that committed to both stores",
		},
		[]string{"resource", "operation"},
	)

	p.counters[MetricSagaCompensated] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookupd",
			Subsystem: "saga",
			Name:      "compensated_total",
			Help:      "Sagas that failed but rolled the search index back cleanly",
		},
		[]string{"resource", "operation"},
	)

	p.counters[MetricSagaUncompensated] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookupd",
			Subsystem: "saga",
			Name:      "uncompensated_total",
			Help:      "Sagas that failed with a failed rollback, stores may diverge",
		},
		[]string{"resource", "operation"},
	)

	p.counters[MetricIndexFallback] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookupd",
			Subsystem: "index",
			Name:      "fallback_total",
			Help:      "Reads served from the primary store because the index was degraded",
		},
		[]string{"resource"},
	)

	p.counters[MetricIndexErrors] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookupd",
			Subsystem: "index",
			Name:      "errors_total",
			Help:      "Search index operation errors",
		},
		[]string{"operation"},
	)

	p.counters[MetricEventPublished] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookupd",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Change events posted to the bus",
		},
		[]string{"topic"},
	)

	p.counters[MetricEventPublishError] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookupd",
			Subsystem: "events",
			Name:      "publish_errors_total",
			Help:      "Best-effort event publishes that failed",
		},
		[]string{"topic"},
	)

	p.histograms[MetricSagaDuration] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lookupd",
			Subsystem: "saga",
			Name:      "duration_seconds",
			Help:      "End-to-end dual-write saga duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"resource", "operation"},
	)

	p.histograms[MetricIndexSearch] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lookupd",
			Subsystem: "index",
			Name:      "search_duration_seconds",
			Help:      "Search index query duration",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"resource"},
	)

	p.histograms[MetricStoreScanResults] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lookupd",
			Subsystem: "store",
			Name:      "scan_results",
			Help:      "Number of rows returned by primary store scans",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 10000},
		},
		[]string{"table"},
	)
}

// Increment increments a Prometheus counter
func (p *PrometheusMetrics) Increment(name string, tags ...string) {
	counter, ok := p.counters[name]
	if !ok {
		counter = promauto.With(p.registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lookupd",
				Name:      sanitizeMetricName(name),
				Help:      "Dynamic counter: " + name,
			},
			p.extractLabels(tags),
		)
		p.counters[name] = counter
	}

	counter.With(p.extractLabelValues(tags)).Inc()
}

// Gauge sets a Prometheus gauge value
func (p *PrometheusMetrics) Gauge(name string, value float64, tags ...string) {
	gauge, ok := p.gauges[name]
	if !ok {
		gauge = promauto.With(p.registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "lookupd",
				Name:      sanitizeMetricName(name),
				Help:      "Dynamic gauge: " + name,
			},
			p.extractLabels(tags),
		)
		p.gauges[name] = gauge
	}

	gauge.With(p.extractLabelValues(tags)).Set(value)
}

// Histogram records a value in a Prometheus histogram
func (p *PrometheusMetrics) Histogram(name string, value float64, tags ...string) {
	histogram, ok := p.histograms[name]
	if !ok {
		histogram = promauto.With(p.registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lookupd",
				Name:      sanitizeMetricName(name),
				Help:      "Dynamic histogram: " + name,
				Buckets:   prometheus.DefBuckets,
			},
			p.extractLabels(tags),
		)
		p.histograms[name] = histogram
	}

	histogram.With(p.extractLabelValues(tags)).Observe(value)
}

// Timing records a duration in a Prometheus histogram
func (p *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...string) {
	p.Histogram(name, duration.Seconds(), tags...)
}

// extractLabels extracts label names from tags (every even index)
func (p *PrometheusMetrics) extractLabels(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	labels := make([]string, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		labels = append(labels, tags[i])
	}
	return labels
}

// extractLabelValues creates a label map from tags (key-value pairs)
func (p *PrometheusMetrics) extractLabelValues(tags []string) prometheus.Labels {
	labels := make(prometheus.Labels)
	for i := 0; i+1 < len(tags); i += 2 {
		labels[tags[i]] = tags[i+1]
	}
	return labels
}

// sanitizeMetricName maps dotted metric names onto the Prometheus charset.
// The lookupd prefix is dropped because the namespace already carries it.
func sanitizeMetricName(name string) string {
	name = strings.TrimPrefix(name, "lookupd.")
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

// GetRegistry returns the underlying Prometheus registry
func (p *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return p.registry
}
