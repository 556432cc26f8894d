package metrics

import (
	"errors"
	"math"
	"sync"
	"testing"
)

func testTag() TagInfo {
	return TagInfo{
		Tag:         "request_latency",
		Header:      "Request Latency",
		ShortHeader: "Latency",
		Unit:        "ms",
		DisplayUnit: "ms",
	}
}

func TestAccumulatorEmpty(t *testing.T) {
	acc := NewAccumulator(testTag())
	r := acc.Summarize()

	if r.Count != 0 {
		t.Errorf("expected count 0, got %d", r.Count)
	}
	if r.Avg != nil || r.Min != nil || r.Max != nil || r.Std != nil {
		t.Error("expected nil stats with no observations")
	}
	if r.P50 != nil || r.P90 != nil || r.P95 != nil || r.P99 != nil {
		t.Error("expected nil percentiles with no observations")
	}
	if r.Current != nil {
		t.Error("expected nil current with no observations")
	}
	if r.Tag != "request_latency" {
		t.Errorf("expected tag metadata on empty result, got %q", r.Tag)
	}
}

func TestAccumulatorBasicStats(t *testing.T) {
	acc := NewAccumulator(testTag())
	for _, v := range []float64{10, 20, 30} {
		if err := acc.Ingest(v); err != nil {
			t.Fatalf("unexpected ingest error: %v", err)
		}
	}

	r := acc.Summarize()
	if r.Count != 3 {
		t.Errorf("expected count 3, got %d", r.Count)
	}
	if *r.Avg != 20 {
		t.Errorf("expected avg 20, got %v", *r.Avg)
	}
	if *r.Min != 10 {
		t.Errorf("expected min 10, got %v", *r.Min)
	}
	if *r.Max != 30 {
		t.Errorf("expected max 30, got %v", *r.Max)
	}
	if *r.Current != 30 {
		t.Errorf("expected current 30, got %v", *r.Current)
	}
}

func TestAccumulatorRejectsNonFinite(t *testing.T) {
	acc := NewAccumulator(testTag())
	if err := acc.Ingest(42); err != nil {
		t.Fatalf("unexpected ingest error: %v", err)
	}

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := acc.Ingest(v)
		if !errors.Is(err, ErrInvalidObservation) {
			t.Errorf("expected ErrInvalidObservation for %v, got %v", v, err)
		}
	}

	r := acc.Summarize()
	if r.Count != 1 {
		t.Errorf("rejected values must not count, got count %d", r.Count)
	}
	if *r.Avg != 42 {
		t.Errorf("rejected values must not affect avg, got %v", *r.Avg)
	}
}

func TestAccumulatorPercentileOrdering(t *testing.T) {
	acc := NewAccumulator(testTag())
	for i := 1; i <= 1000; i++ {
		if err := acc.Ingest(float64(i) * 1.5); err != nil {
			t.Fatalf("unexpected ingest error: %v", err)
		}
	}

	r := acc.Summarize()
	order := []struct {
		name string
		val  float64
	}{
		{"min", *r.Min},
		{"p50", *r.P50},
		{"p90", *r.P90},
		{"p95", *r.P95},
		{"p99", *r.P99},
		{"max", *r.Max},
	}
	for i := 1; i < len(order); i++ {
		if order[i-1].val > order[i].val {
			t.Errorf("%s (%v) > %s (%v)", order[i-1].name, order[i-1].val, order[i].name, order[i].val)
		}
	}
}

func TestAccumulatorSingleObservation(t *testing.T) {
	acc := NewAccumulator(testTag())
	if err := acc.Ingest(7.25); err != nil {
		t.Fatalf("unexpected ingest error: %v", err)
	}

	r := acc.Summarize()
	for name, v := range map[string]*float64{
		"min": r.Min, "max": r.Max, "p50": r.P50, "p99": r.P99, "current": r.Current,
	} {
		if *v != 7.25 {
			t.Errorf("expected %s 7.25 with one observation, got %v", name, *v)
		}
	}
	if *r.Std != 0 {
		t.Errorf("expected std 0 with one observation, got %v", *r.Std)
	}
}

func TestAccumulatorSummarizeIdempotent(t *testing.T) {
	acc := NewAccumulator(testTag())
	for _, v := range []float64{5, 15, 25} {
		if err := acc.Ingest(v); err != nil {
			t.Fatalf("unexpected ingest error: %v", err)
		}
	}

	first := acc.Summarize()
	second := acc.Summarize()
	if first.Count != second.Count || *first.Avg != *second.Avg || *first.P99 != *second.P99 {
		t.Error("Summarize must not consume state")
	}
}

func TestAccumulatorConcurrentIngest(t *testing.T) {
	acc := NewAccumulator(testTag())

	var wg sync.WaitGroup
	const workers = 8
	const perWorker = 500
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_ = acc.Ingest(float64(i))
			}
		}()
	}
	wg.Wait()

	r := acc.Summarize()
	if r.Count != workers*perWorker {
		t.Errorf("expected count %d, got %d", workers*perWorker, r.Count)
	}
	if *r.Min != 0 || *r.Max != perWorker-1 {
		t.Errorf("expected range [0, %d], got [%v, %v]", perWorker-1, *r.Min, *r.Max)
	}
}
