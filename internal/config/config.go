package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// Configuration represents the complete extent engine configuration
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Extents    ExtentConfig     `yaml:"extents"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// GlobalConfig represents global settings
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ExtentConfig represents extent set settings
type ExtentConfig struct {
	// TreeDegree is the btree degree of every extent set.
	TreeDegree int `yaml:"tree_degree"`
	// ValidateOnSweep re-checks the no-overlap invariant after every sweep.
	ValidateOnSweep bool `yaml:"validate_on_sweep"`
}

// MonitoringConfig represents monitoring settings
type MonitoringConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled      bool              `yaml:"enabled"`
	Namespace    string            `yaml:"namespace"`
	Subsystem    string            `yaml:"subsystem"`
	CustomLabels map[string]string `yaml:"custom_labels"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "INFO",
			LogFormat: "text",
		},
		Extents: ExtentConfig{
			TreeDegree:      16,
			ValidateOnSweep: false,
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:   true,
				Namespace: "hsm",
				Subsystem: "extents",
				CustomLabels: map[string]string{
					"service": "hsm",
				},
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("HSM_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = strings.ToUpper(val)
	}
	if val := os.Getenv("HSM_LOG_FORMAT"); val != "" {
		c.Global.LogFormat = strings.ToLower(val)
	}

	if val := os.Getenv("HSM_TREE_DEGREE"); val != "" {
		degree, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid HSM_TREE_DEGREE %q: %w", val, err)
		}
		c.Extents.TreeDegree = degree
	}
	if val := os.Getenv("HSM_VALIDATE_ON_SWEEP"); val != "" {
		c.Extents.ValidateOnSweep = strings.ToLower(val) == "true"
	}

	if val := os.Getenv("HSM_METRICS_ENABLED"); val != "" {
		c.Monitoring.Metrics.Enabled = strings.ToLower(val) == "true"
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if c.Extents.TreeDegree < 2 {
		return fmt.Errorf("tree_degree must be at least 2")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Global.LogLevel == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	switch c.Global.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format: %s (must be text or json)", c.Global.LogFormat)
	}

	if c.Monitoring.Metrics.Enabled && c.Monitoring.Metrics.Namespace == "" {
		return fmt.Errorf("metrics namespace cannot be empty when metrics are enabled")
	}

	return nil
}
