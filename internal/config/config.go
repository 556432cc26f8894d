package config

import (
	"fmt"
	"time"
)

// Default relay endpoints. The backend port matches what external
// subscriber tooling connects to by default.
const (
	DefaultFrontendAddr = "127.0.0.1:5663"
	DefaultBackendAddr  = "127.0.0.1:5664"
)

// Config is the full service configuration.
type Config struct {
	// FrontendAddr is the relay endpoint publishers connect to.
	FrontendAddr string `mapstructure:"frontend"`
	// BackendAddr is the relay endpoint subscribers connect to.
	BackendAddr string `mapstructure:"backend"`
	// RunRelay controls whether this process binds and runs the relay.
	RunRelay bool `mapstructure:"run_relay"`
	// SnapshotInterval is the snapshot/publish cadence.
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
	// PublishEnabled gates the snapshot cycle entirely.
	PublishEnabled bool `mapstructure:"publish_enabled"`
	// ServiceID overrides the generated aggregator identity.
	ServiceID string `mapstructure:"service_id"`
	// SchemaFile points at a YAML metric tag schema; empty uses defaults.
	SchemaFile string `mapstructure:"schema_file"`
	// QueueSize bounds the coordinator's record ingest queue.
	QueueSize int `mapstructure:"queue_size"`
	// FeedRate, when positive, starts a synthetic record feed at this many
	// records per second. Stands in for external workers during bring-up.
	FeedRate int `mapstructure:"feed_rate"`

	Tracing TracingConfig `mapstructure:"tracing"`

	ConfigFile string `mapstructure:"-"`
}

// TracingConfig configures the optional OTLP trace exporter.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
}

// Validate checks the configuration for startup-time errors. Anything
// caught here is fatal; nothing past startup should fail on configuration.
func (c *Config) Validate() error {
	if c.FrontendAddr == "" {
		return fmt.Errorf("frontend address cannot be empty")
	}
	if c.BackendAddr == "" {
		return fmt.Errorf("backend address cannot be empty")
	}
	if c.FrontendAddr == c.BackendAddr {
		return fmt.Errorf("frontend and backend must be different addresses, both are %q", c.FrontendAddr)
	}
	if c.SnapshotInterval <= 0 {
		return fmt.Errorf("snapshot interval must be positive, got %s", c.SnapshotInterval)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue size cannot be negative, got %d", c.QueueSize)
	}
	if c.FeedRate < 0 {
		return fmt.Errorf("feed rate cannot be negative, got %d", c.FeedRate)
	}
	return nil
}
