package metrics

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/objectfs/hsmextent/internal/config"
	"github.com/objectfs/hsmextent/pkg/errors"
	"github.com/objectfs/hsmextent/pkg/types"
)

// Collector records extent engine metrics in its own Prometheus registry
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry

	// Prometheus metrics
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	operationBytes    *prometheus.HistogramVec
	errorCounter      *prometheus.CounterVec
	entriesGauge      *prometheus.GaugeVec
	markedGauge       *prometheus.GaugeVec
	coveredGauge      *prometheus.GaugeVec

	// Internal tracking
	operations map[string]*types.OperationMetrics
	lastReset  time.Time
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Labels    map[string]string `yaml:"labels"`
	Namespace string            `yaml:"namespace"`
	Subsystem string            `yaml:"subsystem"`
}

// ConfigFrom converts the monitoring section of the application configuration.
func ConfigFrom(cfg config.MetricsConfig) *Config {
	return &Config{
		Enabled:   cfg.Enabled,
		Labels:    cfg.CustomLabels,
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
	}
}

// NewCollector creates a new metrics collector
func NewCollector(cfg *Config) (*Collector, error) {
	if cfg == nil {
		cfg = &Config{
			Enabled:   true,
			Namespace: "hsm",
			Subsystem: "extents",
			Labels:    make(map[string]string),
		}
	}

	if !cfg.Enabled {
		return &Collector{config: cfg}, nil
	}

	collector := &Collector{
		config:     cfg,
		registry:   prometheus.NewRegistry(),
		operations: make(map[string]*types.OperationMetrics),
		lastReset:  time.Now(),
	}

	collector.initMetrics()

	if err := collector.registerMetrics(); err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to register metrics").
			WithComponent("metrics").
			WithCause(err)
	}

	return collector, nil
}

// Registry returns the registry holding the collector's metrics, or nil when disabled
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	if !c.config.Enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RecordOperation records an extent operation against a read or write set
func (c *Collector) RecordOperation(operation, set string, duration time.Duration, bytes uint64, success bool) {
	if !c.config.Enabled {
		return
	}

	c.mu.Lock()
	key := set + "." + operation
	m, exists := c.operations[key]
	if !exists {
		m = &types.OperationMetrics{}
		c.operations[key] = m
	}
	m.Count++
	m.TotalDuration += duration
	m.TotalBytes += bytes
	if !success {
		m.Errors++
	}
	m.LastOperation = time.Now()
	m.AvgDuration = time.Duration(int64(m.TotalDuration) / m.Count)
	c.mu.Unlock()

	status := "success"
	if !success {
		status = "error"
	}
	c.operationCounter.WithLabelValues(operation, set, status).Inc()
	c.operationDuration.WithLabelValues(operation, set).Observe(duration.Seconds())
	if bytes > 0 {
		c.operationBytes.WithLabelValues(operation, set).Observe(float64(bytes))
	}
}

// RecordError records an error by its code
func (c *Collector) RecordError(operation string, err error) {
	if !c.config.Enabled || err == nil {
		return
	}

	c.errorCounter.WithLabelValues(operation, classifyError(err)).Inc()
}

// UpdateSetStats publishes the current size of one extent set
func (c *Collector) UpdateSetStats(layer, set string, stats types.SetStats) {
	if !c.config.Enabled {
		return
	}

	c.entriesGauge.WithLabelValues(layer, set).Set(float64(stats.Entries))
	c.markedGauge.WithLabelValues(layer, set).Set(float64(stats.Marked))
	c.coveredGauge.WithLabelValues(layer, set).Set(float64(stats.CoveredBytes))
}

// ForgetLayer drops the gauges of a layer that left the stack
func (c *Collector) ForgetLayer(layer string) {
	if !c.config.Enabled {
		return
	}

	for _, set := range []string{"read", "write"} {
		c.entriesGauge.DeleteLabelValues(layer, set)
		c.markedGauge.DeleteLabelValues(layer, set)
		c.coveredGauge.DeleteLabelValues(layer, set)
	}
}

// GetMetrics returns current metrics
func (c *Collector) GetMetrics() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	operations := make(map[string]*types.OperationMetrics, len(c.operations))
	for k, v := range c.operations {
		copied := *v
		operations[k] = &copied
	}

	return map[string]interface{}{
		"operations": operations,
		"last_reset": c.lastReset,
		"uptime":     time.Since(c.lastReset),
	}
}

// ResetMetrics resets the internal operation tracking
func (c *Collector) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.operations = make(map[string]*types.OperationMetrics)
	c.lastReset = time.Now()
}

func (c *Collector) initMetrics() {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: c.config.Labels,
		}, labels)
	}
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: c.config.Labels,
		}, []string{"layer", "set"})
	}

	c.operationCounter = counter("operations_total", "Total number of extent operations", "operation", "set", "status")
	c.errorCounter = counter("errors_total", "Total number of extent operation errors", "operation", "code")

	c.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "operation_duration_seconds",
			Help:        "Duration of extent operations in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.000001, 4, 12), // 1us to ~4s
			ConstLabels: c.config.Labels,
		},
		[]string{"operation", "set"},
	)

	c.operationBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "operation_extent_bytes",
			Help:        "Length of the extents passed to operations",
			Buckets:     prometheus.ExponentialBuckets(512, 4, 14), // 512B to ~32GB
			ConstLabels: c.config.Labels,
		},
		[]string{"operation", "set"},
	)

	c.entriesGauge = gauge("set_entries", "Entries held by an extent set, marked ones included")
	c.markedGauge = gauge("set_marked_entries", "Entries pending deletion in an extent set")
	c.coveredGauge = gauge("set_covered_bytes", "Bytes covered by the active entries of an extent set")
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.operationCounter,
		c.operationDuration,
		c.operationBytes,
		c.errorCounter,
		c.entriesGauge,
		c.markedGauge,
		c.coveredGauge,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

func classifyError(err error) string {
	if code, ok := errors.GetCode(err); ok {
		return strings.ToLower(string(code))
	}
	return "other"
}
