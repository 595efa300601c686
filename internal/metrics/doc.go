/*
Package metrics exports extent engine metrics through Prometheus.

# Overview

Collector owns a private Prometheus registry and implements types.MetricsCollector,
so a layer.Stack can report into it directly. It keeps per-operation totals in
memory as well, for GetMetrics and debugging.

	collector, err := metrics.NewCollector(metrics.ConfigFrom(cfg.Monitoring.Metrics))
	if err != nil {
		return err
	}
	http.Handle("/metrics", collector.Handler())

# Prometheus Metrics

Counters:
  - <ns>_<sub>_operations_total{operation,set,status}
  - <ns>_<sub>_errors_total{operation,code}

Histograms:
  - <ns>_<sub>_operation_duration_seconds{operation,set}
  - <ns>_<sub>_operation_extent_bytes{operation,set}

Gauges, one series per layer and set ("read" or "write"):
  - <ns>_<sub>_set_entries{layer,set}
  - <ns>_<sub>_set_marked_entries{layer,set}
  - <ns>_<sub>_set_covered_bytes{layer,set}

Error codes are taken from pkg/errors and lowercased; errors without a code are
counted as "other". ForgetLayer drops the gauges of a layer once it leaves its
stack.

A disabled collector accepts every call and records nothing.
*/
package metrics
