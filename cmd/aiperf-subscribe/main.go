// Command aiperf-subscribe connects to a running relay and prints every
// realtime metrics snapshot as it arrives.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/albscui/aiperf/internal/config"
	"github.com/albscui/aiperf/internal/metrics"
	"github.com/albscui/aiperf/internal/metricsclient"
	"github.com/albscui/aiperf/internal/output"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("aiperf-subscribe", pflag.ContinueOnError)
	backend := flags.String("backend", config.DefaultBackendAddr, "relay backend address (host:port)")
	showStats := flags.Bool("stats", false, "also print processing stats frames")
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	printer := output.NewLivePrinter(os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := metricsclient.New(*backend, func(msg *metrics.RealtimeMessage, err error) {
		if err != nil {
			logger.Warn("bad frame", "error", err)
			return
		}
		printer.PrintSnapshot(msg)
	}, logger)
	if *showStats {
		client.WatchRaw(printer.PrintRaw, metrics.TopicProcessingStats)
	}

	return client.Run(ctx)
}
