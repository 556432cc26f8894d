package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a
// Config. Flags override file settings which override defaults.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := &Config{
		FrontendAddr:     DefaultFrontendAddr,
		BackendAddr:      DefaultBackendAddr,
		RunRelay:         true,
		SnapshotInterval: 500 * time.Millisecond,
		PublishEnabled:   true,
		ConfigFile:       configPath,
		Tracing:          TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.FrontendAddr = strings.TrimSpace(cfg.FrontendAddr)
	cfg.BackendAddr = strings.TrimSpace(cfg.BackendAddr)
	cfg.SchemaFile = strings.TrimSpace(cfg.SchemaFile)

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "frontend"); ok {
		val, err := asString(raw)
		if err != nil {
			return wrapSetting("frontend", err)
		}
		cfg.FrontendAddr = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "backend"); ok {
		val, err := asString(raw)
		if err != nil {
			return wrapSetting("backend", err)
		}
		cfg.BackendAddr = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "runrelay", "run_relay", "run-relay"); ok {
		val, err := asBool(raw)
		if err != nil {
			return wrapSetting("run_relay", err)
		}
		cfg.RunRelay = val
	}

	if raw, ok := lookupSetting(settings, "snapshotinterval", "snapshot_interval", "snapshot-interval"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return wrapSetting("snapshot_interval", err)
		}
		cfg.SnapshotInterval = dur
	}

	if raw, ok := lookupSetting(settings, "publishenabled", "publish_enabled", "publish-enabled"); ok {
		val, err := asBool(raw)
		if err != nil {
			return wrapSetting("publish_enabled", err)
		}
		cfg.PublishEnabled = val
	}

	if raw, ok := lookupSetting(settings, "serviceid", "service_id", "service-id"); ok {
		val, err := asString(raw)
		if err != nil {
			return wrapSetting("service_id", err)
		}
		cfg.ServiceID = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "schemafile", "schema_file", "schema-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return wrapSetting("schema_file", err)
		}
		cfg.SchemaFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "queuesize", "queue_size", "queue-size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return wrapSetting("queue_size", err)
		}
		cfg.QueueSize = val
	}

	if raw, ok := lookupSetting(settings, "feedrate", "feed_rate", "feed-rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return wrapSetting("feed_rate", err)
		}
		cfg.FeedRate = val
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw)
		if err != nil {
			return wrapSetting("tracing", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parseTracing(value interface{}) (TracingConfig, error) {
	tracing := TracingConfig{Protocol: "grpc", SampleRate: 1.0}
	if value == nil {
		return tracing, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	if raw, ok := lookupSetting(entry, "enabled"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, wrapSetting("enabled", err)
		}
		tracing.Enabled = val
	}
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, wrapSetting("endpoint", err)
		}
		tracing.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, wrapSetting("protocol", err)
		}
		if val != "" {
			tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
		}
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, wrapSetting("insecure", err)
		}
		tracing.Insecure = val
	}
	if raw, ok := lookupSetting(entry, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, wrapSetting("sample_rate", err)
		}
		tracing.SampleRate = val
	}
	if raw, ok := lookupSetting(entry, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, wrapSetting("service_name", err)
		}
		tracing.ServiceName = strings.TrimSpace(val)
	}
	return tracing, nil
}
