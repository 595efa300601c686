/*
Package config provides configuration management for the extent engine.

Configuration is layered: compiled-in defaults (NewDefault), then a YAML file
(LoadFromFile), then environment variables (LoadFromEnv). Validate should be
called once all sources are applied.

# Example Configuration

	global:
	  log_level: INFO        # DEBUG, INFO, WARN, ERROR
	  log_format: text       # text or json

	extents:
	  tree_degree: 16        # btree degree of each extent set
	  validate_on_sweep: false

	monitoring:
	  metrics:
	    enabled: true
	    namespace: hsm
	    subsystem: extents
	    custom_labels:
	      service: hsm

# Environment Variables

	HSM_LOG_LEVEL, HSM_LOG_FORMAT, HSM_TREE_DEGREE,
	HSM_VALIDATE_ON_SWEEP, HSM_METRICS_ENABLED
*/
package config
