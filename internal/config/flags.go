package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "aiperf",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Bus endpoints
	flags.String("frontend", DefaultFrontendAddr, "Relay frontend address (publishers connect here)")
	flags.String("backend", DefaultBackendAddr, "Relay backend address (subscribers connect here)")
	flags.Bool("no-relay", false, "Do not run the relay in this process (connect to an external one)")

	// Aggregation flags
	flags.DurationP("interval", "i", 500*time.Millisecond, "Snapshot publish interval")
	flags.Bool("no-publish", false, "Suspend the snapshot cycle entirely (ingestion still runs)")
	flags.String("service-id", "", "Aggregator identity on the bus (generated when empty)")
	flags.String("schema", "", "Path to YAML metric tag schema (built-in defaults when empty)")
	flags.Int("queue-size", 0, "Record ingest queue size (0 uses the default)")
	flags.Int("feed-rate", 0, "Synthetic records per second for bring-up (0 disables)")

	// Tracing flags
	flags.Bool("trace", false, "Enable OTLP tracing")
	flags.String("trace-endpoint", "", "OTLP endpoint (falls back to OTEL_EXPORTER_OTLP_ENDPOINT)")
	flags.String("trace-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("trace-insecure", false, "Skip TLS for the OTLP exporter")
	flags.Float64("trace-sample-rate", 1.0, "Trace sampling rate between 0.0 and 1.0")

	flags.String("config", "", "Path to configuration file (JSON or YAML)")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config,
// overriding values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("frontend") {
		val, err := fs.GetString("frontend")
		if err != nil {
			return err
		}
		cfg.FrontendAddr = strings.TrimSpace(val)
	}
	if fs.Changed("backend") {
		val, err := fs.GetString("backend")
		if err != nil {
			return err
		}
		cfg.BackendAddr = strings.TrimSpace(val)
	}
	if fs.Changed("no-relay") {
		val, err := fs.GetBool("no-relay")
		if err != nil {
			return err
		}
		cfg.RunRelay = !val
	}
	if fs.Changed("interval") {
		val, err := fs.GetDuration("interval")
		if err != nil {
			return err
		}
		cfg.SnapshotInterval = val
	}
	if fs.Changed("no-publish") {
		val, err := fs.GetBool("no-publish")
		if err != nil {
			return err
		}
		cfg.PublishEnabled = !val
	}
	if fs.Changed("service-id") {
		val, err := fs.GetString("service-id")
		if err != nil {
			return err
		}
		cfg.ServiceID = strings.TrimSpace(val)
	}
	if fs.Changed("schema") {
		val, err := fs.GetString("schema")
		if err != nil {
			return err
		}
		cfg.SchemaFile = strings.TrimSpace(val)
	}
	if fs.Changed("queue-size") {
		val, err := fs.GetInt("queue-size")
		if err != nil {
			return err
		}
		cfg.QueueSize = val
	}
	if fs.Changed("feed-rate") {
		val, err := fs.GetInt("feed-rate")
		if err != nil {
			return err
		}
		cfg.FeedRate = val
	}
	if fs.Changed("trace") {
		val, err := fs.GetBool("trace")
		if err != nil {
			return err
		}
		cfg.Tracing.Enabled = val
	}
	if fs.Changed("trace-endpoint") {
		val, err := fs.GetString("trace-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("trace-protocol") {
		val, err := fs.GetString("trace-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("trace-insecure") {
		val, err := fs.GetBool("trace-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("trace-sample-rate") {
		val, err := fs.GetFloat64("trace-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	return nil
}
