package types

import "time"

// MetricsCollector defines the metrics collection interface used by extent layers
type MetricsCollector interface {
	// RecordOperation records one extent operation against the read or write set.
	RecordOperation(operation, set string, duration time.Duration, bytes uint64, success bool)
	RecordError(operation string, err error)
	UpdateSetStats(layer, set string, stats SetStats)
	// ForgetLayer drops the per-set gauges of a layer that left its stack.
	ForgetLayer(layer string)
	GetMetrics() map[string]interface{}
}

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) RecordOperation(string, string, time.Duration, uint64, bool) {}
func (NopMetrics) RecordError(string, error)                                   {}
func (NopMetrics) UpdateSetStats(string, string, SetStats)                     {}
func (NopMetrics) ForgetLayer(string)                                          {}
func (NopMetrics) GetMetrics() map[string]interface{}                          { return nil }
