// Package aggregator routes raw metric records to their accumulators and
// runs the periodic snapshot/publish cycle over the event bus.
package aggregator

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/albscui/aiperf/internal/metrics"
	"github.com/albscui/aiperf/internal/tracing"
)

// State is the coordinator lifecycle: Idle -> Running -> Draining -> Stopped.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Publisher is the bus capability the coordinator holds by reference.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

const (
	defaultSnapshotInterval = 500 * time.Millisecond
	defaultRecordQueue      = 1024
)

// Config configures a Coordinator.
type Config struct {
	// SnapshotInterval is the publish cadence. Defaults to 500ms.
	SnapshotInterval time.Duration
	// PublishEnabled gates the whole snapshot cycle. When false no ticks
	// fire and nothing is published; ingestion still runs. This replaces
	// any runtime check against unrelated global state.
	PublishEnabled bool
	// ServiceID identifies this aggregator instance on the bus. A ULID is
	// minted when empty. Subscribers treat it as the unit of ordering.
	ServiceID string
	// QueueSize bounds the record ingest queue. Defaults to 1024.
	QueueSize int
	Logger    *slog.Logger
	// Tracer records a span per snapshot cycle when set.
	Tracer trace.Tracer
}

// Coordinator ingests records, routes them to per-tag accumulators, and
// publishes one snapshot per productive interval. Ingestion and the
// snapshot cycle interleave on a single goroutine so neither can block the
// other for unbounded time.
type Coordinator struct {
	cfg       Config
	registry  *metrics.Registry
	publisher Publisher
	logger    *slog.Logger
	serviceID string

	stats   ProcessingStats
	state   atomic.Int32
	records chan metrics.Record
	stop    chan struct{}
	done    chan struct{}

	lastPublished int64 // record count at the previous productive tick
	lastRequestNS int64 // enforces monotonically increasing publish timestamps
}

// New creates a coordinator over a populated registry. The publisher may be
// nil only when publishing is disabled.
func New(cfg Config, registry *metrics.Registry, publisher Publisher) *Coordinator {
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = defaultSnapshotInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultRecordQueue
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	serviceID := cfg.ServiceID
	if serviceID == "" {
		serviceID = ulid.MustNew(ulid.Timestamp(time.Now()), rand.New(rand.NewSource(time.Now().UnixNano()))).String()
	}
	return &Coordinator{
		cfg:       cfg,
		registry:  registry,
		publisher: publisher,
		logger:    cfg.Logger,
		serviceID: serviceID,
		records:   make(chan metrics.Record, cfg.QueueSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// ServiceID returns this instance's bus identity.
func (c *Coordinator) ServiceID() string { return c.serviceID }

// State returns the current lifecycle state.
func (c *Coordinator) State() State { return State(c.state.Load()) }

// Stats returns the process-wide counters.
func (c *Coordinator) Stats() *ProcessingStats { return &c.stats }

// Start transitions Idle -> Running and launches the run loop. Calling it
// more than once is a no-op.
func (c *Coordinator) Start() {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return
	}
	c.stats.Reset()
	go c.run()
}

// OnRecord hands one record to the coordinator. It never blocks: when the
// ingest queue is full the record is counted as overflow and dropped, so a
// burst of completed requests cannot stall the snapshot cadence. Records
// arriving after Stop are discarded. The first record starts the
// coordinator if Start was not called explicitly.
func (c *Coordinator) OnRecord(rec metrics.Record) {
	switch c.State() {
	case StateIdle:
		c.Start()
	case StateDraining, StateStopped:
		return
	}
	select {
	case c.records <- rec:
	default:
		c.stats.IncrementOverflow()
	}
}

// Stop requests the Draining -> Stopped transition: queued records are
// still routed, one final best-effort snapshot is emitted, then the loop
// exits. Returns when the transition completes or the context ends.
func (c *Coordinator) Stop(ctx context.Context) error {
	switch c.State() {
	case StateIdle:
		c.state.Store(int32(StateStopped))
		close(c.done)
		return nil
	case StateStopped:
		return nil
	}
	if c.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		close(c.stop)
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the coordinator reaches Stopped.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

func (c *Coordinator) run() {
	var tick <-chan time.Time
	if c.cfg.PublishEnabled {
		ticker := time.NewTicker(c.cfg.SnapshotInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case rec := <-c.records:
			c.route(rec)
		case <-tick:
			c.publishSnapshot(false)
		case <-c.stop:
			c.drain()
			return
		}
	}
}

// drain routes everything already queued, emits the final snapshot, and
// transitions to Stopped.
func (c *Coordinator) drain() {
	for {
		select {
		case rec := <-c.records:
			c.route(rec)
		default:
			if c.cfg.PublishEnabled {
				c.publishSnapshot(true)
			}
			c.state.Store(int32(StateStopped))
			close(c.done)
			return
		}
	}
}

// route sends one record to its accumulator. Unknown tags and invalid
// observations are counted and dropped, never fatal.
func (c *Coordinator) route(rec metrics.Record) {
	c.stats.IncrementTotal()

	acc := c.registry.Lookup(rec.Tag)
	if acc == nil {
		c.stats.IncrementUnknownTag()
		return
	}
	if err := acc.Ingest(rec.Value); err != nil {
		c.stats.IncrementInvalid()
		c.logger.Warn("dropping observation", "tag", rec.Tag, "error", err)
	}
}

// publishSnapshot runs one snapshot cycle. Regular ticks skip publishing
// when no new record arrived since the previous tick; the final drain
// snapshot always publishes. Publish failures are logged and the next tick
// retries with fresh data.
func (c *Coordinator) publishSnapshot(final bool) {
	total := c.stats.Total()
	if !final && total == c.lastPublished {
		return
	}
	c.lastPublished = total

	if c.cfg.Tracer != nil {
		_, span := tracing.StartSnapshotSpan(context.Background(), c.cfg.Tracer, c.serviceID)
		defer tracing.EndSpan(span, nil,
			attribute.Int64("aiperf.total_records", total),
			attribute.Bool("aiperf.final", final),
		)
	}

	requestNS := time.Now().UnixNano()
	if requestNS <= c.lastRequestNS {
		requestNS = c.lastRequestNS + 1
	}
	c.lastRequestNS = requestNS

	msg := metrics.RealtimeMessage{
		MessageType: metrics.MessageTypeRealtimeMetrics,
		ServiceID:   c.serviceID,
		RequestNS:   requestNS,
		Metrics:     c.registry.Summarize(),
	}
	c.publish(metrics.TopicRealtimeMetrics, msg)

	stats := metrics.ProcessingStatsMessage{
		MessageType:       metrics.MessageTypeProcessingStats,
		ServiceID:         c.serviceID,
		RequestNS:         requestNS,
		TotalRecords:      total,
		UnknownTagRecords: c.stats.UnknownTag(),
	}
	c.publish(metrics.TopicProcessingStats, stats)
}

func (c *Coordinator) publish(topic string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("encode snapshot", "topic", topic, "error", err)
		return
	}
	if err := c.publisher.Publish(topic, payload); err != nil {
		c.logger.Warn("publish snapshot", "topic", topic, "error", err)
	}
}
