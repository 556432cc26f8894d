package metrics

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// ErrInvalidObservation is returned by Ingest for non-finite values.
// Callers are expected to count and drop the value, not abort.
var ErrInvalidObservation = errors.New("invalid observation")

// histogramScale converts metric values to fixed-point thousandths so the
// integer histogram keeps three decimal places of the original unit.
const histogramScale = 1000

// TagInfo describes a metric stream: its stable tag plus the display
// metadata carried in every published result.
type TagInfo struct {
	Tag         string `yaml:"tag"`
	Header      string `yaml:"header"`
	ShortHeader string `yaml:"short_header"`
	Unit        string `yaml:"unit"`
	DisplayUnit string `yaml:"display_unit"`
}

// Accumulator tracks incremental statistics for a single metric tag.
// Ingest and Summarize are safe to call from different goroutines.
type Accumulator struct {
	mu      sync.Mutex
	info    TagInfo
	hist    *hdrhistogram.Histogram
	count   int64
	sum     float64
	sumSq   float64
	min     float64
	max     float64
	current float64
}

// NewAccumulator creates an accumulator for the given tag.
func NewAccumulator(info TagInfo) *Accumulator {
	// Track fixed-point values from 0.001 up to 1e6 units with 3 significant figures.
	h := hdrhistogram.New(1, 1_000_000_000, 3)
	return &Accumulator{
		info: info,
		hist: h,
	}
}

// Info returns the tag metadata this accumulator was registered with.
func (a *Accumulator) Info() TagInfo { return a.info }

// Ingest records one observation. Non-finite values are rejected with
// ErrInvalidObservation and leave the state untouched.
func (a *Accumulator) Ingest(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: tag %s value %v", ErrInvalidObservation, a.info.Tag, value)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	scaled := int64(math.Round(value * histogramScale))
	if scaled < a.hist.LowestTrackableValue() {
		scaled = a.hist.LowestTrackableValue()
	}
	if scaled > a.hist.HighestTrackableValue() {
		scaled = a.hist.HighestTrackableValue()
	}
	_ = a.hist.RecordValue(scaled)

	if a.count == 0 || value < a.min {
		a.min = value
	}
	if a.count == 0 || value > a.max {
		a.max = value
	}
	a.count++
	a.sum += value
	a.sumSq += value * value
	a.current = value
	return nil
}

// Summarize returns a point-in-time result. With no observations every
// derived statistic is nil so consumers cannot mistake absence for zero.
func (a *Accumulator) Summarize() Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := Result{
		Tag:         a.info.Tag,
		Header:      a.info.Header,
		ShortHeader: a.info.ShortHeader,
		Unit:        a.info.Unit,
		DisplayUnit: a.info.DisplayUnit,
		Count:       a.count,
	}
	if a.count == 0 {
		return r
	}

	avg := a.sum / float64(a.count)
	variance := a.sumSq/float64(a.count) - avg*avg
	if variance < 0 {
		variance = 0
	}
	std := math.Sqrt(variance)

	r.Current = ptr(a.current)
	r.Avg = ptr(avg)
	r.Min = ptr(a.min)
	r.Max = ptr(a.max)
	r.Std = ptr(std)
	r.P50 = ptr(a.quantile(50))
	r.P90 = ptr(a.quantile(90))
	r.P95 = ptr(a.quantile(95))
	r.P99 = ptr(a.quantile(99))
	return r
}

// quantile reads the histogram and clamps the value into the exact observed
// range, so min <= p50 <= p90 <= p95 <= p99 <= max holds despite the
// histogram's bucketing error. Caller must hold the lock.
func (a *Accumulator) quantile(q float64) float64 {
	v := float64(a.hist.ValueAtQuantile(q)) / histogramScale
	if v < a.min {
		v = a.min
	}
	if v > a.max {
		v = a.max
	}
	return v
}

func ptr(v float64) *float64 { return &v }
