// Package config loads and validates connector configuration. Configuration
// is environment-first (matching the deployment contract of the organ) with
// an optional YAML file for the capability allow-list and tunables. Missing
// required configuration fails at startup, never mid-stream.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spinalcom/spinal-organ-connector-azur/errors"
)

// Environment variable names (deployment contract)
const (
	EnvNetworkName  = "NETWORK_NAME"
	EnvNATSURL      = "NATS_URL"
	EnvStreamName   = "STREAM_NAME"
	EnvPullInterval = "PULL_INTERVAL"
	EnvNATSUsername = "NATS_USERNAME"
	EnvNATSPassword = "NATS_PASSWORD"
	EnvNATSToken    = "NATS_TOKEN"
	EnvNeo4jURI     = "NEO4J_URI"
	EnvNeo4jUser    = "NEO4J_USERNAME"
	EnvNeo4jPass    = "NEO4J_PASSWORD"
	EnvMetricsPort  = "METRICS_PORT"
)

// Default capability classes of interest; anything else is dropped before
// reaching the reconciler.
var defaultCapabilities = []string{
	"Capability.Status.Occupancy_Status",
	"Capability.Status.People_Counting_Status",
	"Capability.Status.Health_Status",
}

// Config represents the complete connector configuration
type Config struct {
	NetworkContext string           `yaml:"network_context"`
	NATS           NATSConfig       `yaml:"nats"`
	Graph          GraphConfig      `yaml:"graph"`
	TimeSeries     TimeSeriesConfig `yaml:"timeseries"`
	Sync           SyncConfig       `yaml:"sync"`
	Ingest         IngestConfig     `yaml:"ingest"`
	Metrics        MetricsConfig    `yaml:"metrics"`
}

// NATSConfig defines the event-bus connection settings
type NATSConfig struct {
	URL      string `yaml:"url"`
	Stream   string `yaml:"stream"`
	Subject  string `yaml:"subject"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
}

// GraphConfig defines the graph store connection settings
type GraphConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database,omitempty"`
}

// TimeSeriesConfig defines the historical sample stream settings
type TimeSeriesConfig struct {
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
	RetentionDays int    `yaml:"retention_days"`
}

// SyncConfig defines the heartbeat sync loop settings
type SyncConfig struct {
	PullInterval    time.Duration `yaml:"pull_interval"`
	FailureCooldown time.Duration `yaml:"failure_cooldown"`
	StateBucket     string        `yaml:"state_bucket"`
}

// UnmarshalYAML decodes durations from either a duration string ("30s") or
// an integer of milliseconds, matching the environment contract. Absent
// fields keep their current values.
func (c *SyncConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		PullInterval    yaml.Node `yaml:"pull_interval"`
		FailureCooldown yaml.Node `yaml:"failure_cooldown"`
		StateBucket     string    `yaml:"state_bucket"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	if !raw.PullInterval.IsZero() {
		d, err := parseYAMLDuration(raw.PullInterval.Value)
		if err != nil {
			return fmt.Errorf("sync.pull_interval: %w", err)
		}
		c.PullInterval = d
	}
	if !raw.FailureCooldown.IsZero() {
		d, err := parseYAMLDuration(raw.FailureCooldown.Value)
		if err != nil {
			return fmt.Errorf("sync.failure_cooldown: %w", err)
		}
		c.FailureCooldown = d
	}
	if raw.StateBucket != "" {
		c.StateBucket = raw.StateBucket
	}

	return nil
}

func parseYAMLDuration(s string) (time.Duration, error) {
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

// IngestConfig defines the ingestion supervisor settings
type IngestConfig struct {
	Capabilities []string `yaml:"capabilities"`
	Workers      int      `yaml:"workers"`
	QueueSize    int      `yaml:"queue_size"`
}

// MetricsConfig defines the metrics exposition settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Default returns a configuration populated with defaults; required fields
// stay empty and must come from the environment or the YAML file.
func Default() *Config {
	return &Config{
		TimeSeries: TimeSeriesConfig{
			Stream:        "TIMESERIES",
			SubjectPrefix: "timeseries.endpoint",
			RetentionDays: 366,
		},
		Sync: SyncConfig{
			FailureCooldown: time.Minute,
			StateBucket:     "connector-state",
		},
		Ingest: IngestConfig{
			Capabilities: append([]string(nil), defaultCapabilities...),
			Workers:      4,
			QueueSize:    256,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// the environment (highest precedence). A .env file in the working directory
// is honored when present.
func Load(path string) (*Config, error) {
	// Missing .env is fine; explicit env vars still apply
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapFatal(err, "Config", "Load", fmt.Sprintf("read %s", path))
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", fmt.Sprintf("parse %s", path))
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overlays environment variables onto the configuration
func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvNetworkName); v != "" {
		c.NetworkContext = v
	}
	if v := os.Getenv(EnvNATSURL); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv(EnvStreamName); v != "" {
		c.NATS.Stream = v
	}
	if v := os.Getenv(EnvNATSUsername); v != "" {
		c.NATS.Username = v
	}
	if v := os.Getenv(EnvNATSPassword); v != "" {
		c.NATS.Password = v
	}
	if v := os.Getenv(EnvNATSToken); v != "" {
		c.NATS.Token = v
	}
	if v := os.Getenv(EnvNeo4jURI); v != "" {
		c.Graph.URI = v
	}
	if v := os.Getenv(EnvNeo4jUser); v != "" {
		c.Graph.Username = v
	}
	if v := os.Getenv(EnvNeo4jPass); v != "" {
		c.Graph.Password = v
	}

	if v := os.Getenv(EnvPullInterval); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return errors.WrapInvalid(
				fmt.Errorf("%s must be a positive integer of milliseconds, got %q", EnvPullInterval, v),
				"Config", "applyEnv", "parse pull interval")
		}
		c.Sync.PullInterval = time.Duration(ms) * time.Millisecond
	}

	if v := os.Getenv(EnvMetricsPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return errors.WrapInvalid(
				fmt.Errorf("%s must be a valid port, got %q", EnvMetricsPort, v),
				"Config", "applyEnv", "parse metrics port")
		}
		c.Metrics.Port = port
	}

	return nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	var errs []error

	if c.NetworkContext == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvNetworkName))
	}
	if c.NATS.URL == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvNATSURL))
	}
	if c.NATS.Stream == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvStreamName))
	}
	if c.Sync.PullInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s is required", EnvPullInterval))
	}
	if c.Graph.URI == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvNeo4jURI))
	}
	if len(c.Ingest.Capabilities) == 0 {
		errs = append(errs, fmt.Errorf("ingest.capabilities cannot be empty"))
	}
	if c.TimeSeries.RetentionDays <= 0 {
		errs = append(errs, fmt.Errorf("timeseries.retention_days must be positive"))
	}

	if len(errs) > 0 {
		return errors.WrapFatal(stderrors.Join(errs...), "Config", "Validate", "validate configuration")
	}

	// Subject defaults to a stream-scoped capability subject
	if c.NATS.Subject == "" {
		c.NATS.Subject = "events.capability"
	}

	return nil
}
