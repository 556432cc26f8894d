package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/albscui/aiperf/internal/aggregator"
	"github.com/albscui/aiperf/internal/bus"
	"github.com/albscui/aiperf/internal/config"
	"github.com/albscui/aiperf/internal/metrics"
	"github.com/albscui/aiperf/internal/schema"
	"github.com/albscui/aiperf/internal/tracing"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	if cfg.RunRelay {
		relay := bus.NewRelay(bus.RelayConfig{
			FrontendAddr: cfg.FrontendAddr,
			BackendAddr:  cfg.BackendAddr,
			Logger:       logger,
		})
		// A bind failure here is fatal: no fallback ports.
		if err := relay.Start(); err != nil {
			return err
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			_ = relay.Stop(stopCtx)
		}()
	}

	tags, err := schema.Load(cfg.SchemaFile)
	if err != nil {
		return err
	}

	registry := metrics.NewRegistry()
	for _, info := range tags {
		if err := registry.Register(info); err != nil {
			return err
		}
	}

	var publisher *bus.Publisher
	if cfg.PublishEnabled {
		publisher = bus.NewPublisher(cfg.FrontendAddr)
		connectCtx, connectCancel := context.WithTimeout(ctx, connectTimeout)
		err := publisher.Connect(connectCtx)
		connectCancel()
		if err != nil {
			return err
		}
		defer publisher.Close()
	}

	coordCfg := aggregator.Config{
		SnapshotInterval: cfg.SnapshotInterval,
		PublishEnabled:   cfg.PublishEnabled,
		ServiceID:        cfg.ServiceID,
		QueueSize:        cfg.QueueSize,
		Logger:           logger,
	}
	if cfg.Tracing.Enabled {
		coordCfg.Tracer = provider.Tracer()
	}
	coord := aggregator.New(coordCfg, registry, publisher)
	coord.Start()

	logger.Info("aggregator running",
		"service_id", coord.ServiceID(),
		"interval", cfg.SnapshotInterval,
		"publish", cfg.PublishEnabled,
		"metrics", registry.Len())

	if cfg.FeedRate > 0 {
		go runSyntheticFeed(ctx, coord, tags, cfg.FeedRate, logger)
	}

	<-ctx.Done()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer drainCancel()
	if err := coord.Stop(drainCtx); err != nil {
		return fmt.Errorf("drain aggregator: %w", err)
	}

	stats := coord.Stats()
	logger.Info("aggregator stopped",
		"total_records", stats.Total(),
		"unknown_tags", stats.UnknownTag(),
		"invalid", stats.Invalid(),
		"overflow", stats.Overflow())
	return nil
}

// runSyntheticFeed emits plausible records at a fixed rate, standing in for
// the worker fleet during bring-up and demos.
func runSyntheticFeed(ctx context.Context, coord *aggregator.Coordinator, tags []metrics.TagInfo, perSecond int, logger *slog.Logger) {
	limiter := rate.NewLimiter(rate.Limit(perSecond), 1)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	logger.Info("synthetic feed started", "rate", perSecond)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		info := tags[rng.Intn(len(tags))]
		coord.OnRecord(metrics.Record{
			Tag:       info.Tag,
			Value:     50 + rng.Float64()*200,
			Unit:      info.Unit,
			Timestamp: time.Now().UnixNano(),
		})
	}
}
