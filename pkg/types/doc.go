/*
Package types provides the shared data structures and interfaces of the extent engine.

SetStats and LayerStats summarize the coverage a layer tracks. MetricsCollector is the
contract between pkg/layer and internal/metrics; NopMetrics satisfies it for callers
that do not export metrics.
*/
package types
