// Package metrics implements the per-tag streaming statistics engine:
// accumulators that ingest raw observations in O(1) and summarize into
// immutable results with count, avg, min/max, standard deviation, and
// histogram-derived percentiles. It also defines the wire messages the
// aggregator publishes on the event bus.
package metrics
