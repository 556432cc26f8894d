package aggregator

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/albscui/aiperf/internal/metrics"
)

// capturePublisher records every published frame by topic.
type capturePublisher struct {
	mu     sync.Mutex
	frames map[string][][]byte
}

func (p *capturePublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frames == nil {
		p.frames = make(map[string][][]byte)
	}
	p.frames[topic] = append(p.frames[topic], append([]byte(nil), payload...))
	return nil
}

func (p *capturePublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames[topic])
}

func (p *capturePublisher) all(topic string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.frames[topic]))
	copy(out, p.frames[topic])
	return out
}

func (p *capturePublisher) last(t *testing.T, topic string) []byte {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	frames := p.frames[topic]
	if len(frames) == 0 {
		t.Fatalf("no frames published on %s", topic)
	}
	return frames[len(frames)-1]
}

func testRegistry(t *testing.T) *metrics.Registry {
	t.Helper()
	r := metrics.NewRegistry()
	if err := r.Register(metrics.TagInfo{Tag: "request_latency", Header: "Request Latency", Unit: "ms"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return r
}

func stopCoordinator(t *testing.T, c *Coordinator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func decodeRealtime(t *testing.T, payload []byte) metrics.RealtimeMessage {
	t.Helper()
	var msg metrics.RealtimeMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("decode realtime message: %v", err)
	}
	return msg
}

func TestCoordinatorDrainPublishesFinalSnapshot(t *testing.T) {
	pub := &capturePublisher{}
	c := New(Config{SnapshotInterval: time.Hour, PublishEnabled: true}, testRegistry(t), pub)
	c.Start()

	for _, v := range []float64{10, 20, 30} {
		c.OnRecord(metrics.Record{Tag: "request_latency", Value: v})
	}
	stopCoordinator(t, c)

	if c.State() != StateStopped {
		t.Errorf("expected stopped state, got %s", c.State())
	}

	msg := decodeRealtime(t, pub.last(t, metrics.TopicRealtimeMetrics))
	if msg.MessageType != metrics.MessageTypeRealtimeMetrics {
		t.Errorf("expected message type %q, got %q", metrics.MessageTypeRealtimeMetrics, msg.MessageType)
	}
	if len(msg.Metrics) != 1 {
		t.Fatalf("expected 1 metric, got %d", len(msg.Metrics))
	}
	m := msg.Metrics[0]
	if m.Count != 3 {
		t.Errorf("expected count 3, got %d", m.Count)
	}
	if *m.Avg != 20 {
		t.Errorf("expected avg 20, got %v", *m.Avg)
	}

	published := pub.count(metrics.TopicRealtimeMetrics)
	c.OnRecord(metrics.Record{Tag: "request_latency", Value: 99})
	time.Sleep(20 * time.Millisecond)
	if got := pub.count(metrics.TopicRealtimeMetrics); got != published {
		t.Errorf("expected no publishes after stop, got %d new", got-published)
	}
	if got := c.Stats().Total(); got != 3 {
		t.Errorf("records after stop must be dropped, total %d", got)
	}
}

func TestCoordinatorSkipsTicksWithoutNewData(t *testing.T) {
	pub := &capturePublisher{}
	c := New(Config{SnapshotInterval: 10 * time.Millisecond, PublishEnabled: true}, testRegistry(t), pub)
	c.Start()

	time.Sleep(80 * time.Millisecond)
	if got := pub.count(metrics.TopicRealtimeMetrics); got != 0 {
		t.Errorf("expected no publishes with no data, got %d", got)
	}

	stopCoordinator(t, c)
	if got := pub.count(metrics.TopicRealtimeMetrics); got != 1 {
		t.Errorf("drain must publish exactly one final snapshot, got %d", got)
	}
}

func TestCoordinatorCountsUnknownTags(t *testing.T) {
	pub := &capturePublisher{}
	c := New(Config{SnapshotInterval: time.Hour, PublishEnabled: true}, testRegistry(t), pub)
	c.Start()

	c.OnRecord(metrics.Record{Tag: "no_such_tag", Value: 1})
	c.OnRecord(metrics.Record{Tag: "request_latency", Value: 5})
	stopCoordinator(t, c)

	if got := c.Stats().UnknownTag(); got != 1 {
		t.Errorf("expected 1 unknown-tag record, got %d", got)
	}

	var stats metrics.ProcessingStatsMessage
	if err := json.Unmarshal(pub.last(t, metrics.TopicProcessingStats), &stats); err != nil {
		t.Fatalf("decode stats message: %v", err)
	}
	if stats.TotalRecords != 2 {
		t.Errorf("expected 2 total records, got %d", stats.TotalRecords)
	}
	if stats.UnknownTagRecords != 1 {
		t.Errorf("expected 1 unknown-tag record, got %d", stats.UnknownTagRecords)
	}
}

func TestCoordinatorSurvivesInvalidObservation(t *testing.T) {
	pub := &capturePublisher{}
	c := New(Config{SnapshotInterval: time.Hour, PublishEnabled: true}, testRegistry(t), pub)
	c.Start()

	for _, v := range []float64{1, 2, 3, 4, 5} {
		c.OnRecord(metrics.Record{Tag: "request_latency", Value: v})
	}
	c.OnRecord(metrics.Record{Tag: "request_latency", Value: math.NaN()})
	stopCoordinator(t, c)

	msg := decodeRealtime(t, pub.last(t, metrics.TopicRealtimeMetrics))
	if got := msg.Metrics[0].Count; got != 5 {
		t.Errorf("invalid observation must not count, got %d", got)
	}
	if got := c.Stats().Invalid(); got != 1 {
		t.Errorf("expected 1 invalid observation, got %d", got)
	}
	if got := c.Stats().Total(); got != 6 {
		t.Errorf("expected 6 total records, got %d", got)
	}
}

func TestCoordinatorRequestNSMonotonic(t *testing.T) {
	pub := &capturePublisher{}
	c := New(Config{SnapshotInterval: 5 * time.Millisecond, PublishEnabled: true}, testRegistry(t), pub)
	c.Start()

	for i := 0; i < 5; i++ {
		c.OnRecord(metrics.Record{Tag: "request_latency", Value: float64(i)})
		time.Sleep(15 * time.Millisecond)
	}
	stopCoordinator(t, c)

	frames := pub.all(metrics.TopicRealtimeMetrics)
	if len(frames) < 2 {
		t.Fatalf("expected multiple snapshots, got %d", len(frames))
	}
	var prev int64
	for i, frame := range frames {
		msg := decodeRealtime(t, frame)
		if msg.RequestNS <= prev {
			t.Errorf("snapshot %d: request_ns %d not greater than previous %d", i, msg.RequestNS, prev)
		}
		prev = msg.RequestNS
	}
}

func TestCoordinatorAutoStartsOnFirstRecord(t *testing.T) {
	c := New(Config{SnapshotInterval: time.Hour, PublishEnabled: false}, testRegistry(t), nil)
	if c.State() != StateIdle {
		t.Fatalf("expected idle state, got %s", c.State())
	}
	c.OnRecord(metrics.Record{Tag: "request_latency", Value: 1})
	if c.State() != StateRunning {
		t.Errorf("expected running state after first record, got %s", c.State())
	}
	stopCoordinator(t, c)
}

func TestCoordinatorStopFromIdle(t *testing.T) {
	c := New(Config{}, testRegistry(t), nil)
	stopCoordinator(t, c)
	if c.State() != StateStopped {
		t.Errorf("expected stopped state, got %s", c.State())
	}
	select {
	case <-c.Done():
	default:
		t.Error("expected Done to be closed")
	}
	// Second stop is a no-op.
	stopCoordinator(t, c)
}

func TestCoordinatorPublishDisabled(t *testing.T) {
	pub := &capturePublisher{}
	c := New(Config{SnapshotInterval: 5 * time.Millisecond, PublishEnabled: false}, testRegistry(t), pub)
	c.Start()

	for i := 0; i < 10; i++ {
		c.OnRecord(metrics.Record{Tag: "request_latency", Value: float64(i)})
	}
	time.Sleep(30 * time.Millisecond)
	stopCoordinator(t, c)

	if got := pub.count(metrics.TopicRealtimeMetrics); got != 0 {
		t.Errorf("expected no publishes with publishing disabled, got %d", got)
	}
	if got := c.Stats().Total(); got != 10 {
		t.Errorf("ingestion must still run, total %d", got)
	}
}

func TestCoordinatorServiceID(t *testing.T) {
	c := New(Config{ServiceID: "agg-1"}, testRegistry(t), nil)
	if c.ServiceID() != "agg-1" {
		t.Errorf("expected configured service id, got %q", c.ServiceID())
	}

	generated := New(Config{}, testRegistry(t), nil)
	if len(generated.ServiceID()) != 26 {
		t.Errorf("expected 26-char ULID service id, got %q", generated.ServiceID())
	}
}
