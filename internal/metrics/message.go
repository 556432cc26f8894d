package metrics

// Topic names on the event bus. Every topic ends with the reserved '$'
// terminator so that subscribing to one never matches another that merely
// shares its prefix (realtime_metrics vs realtime_metrics_other).
const (
	TopicRealtimeMetrics  = "realtime_metrics$"
	TopicTelemetryMetrics = "realtime_telemetry_metrics$"
	TopicProcessingStats  = "processing_stats$"
	TopicHealth           = "health$"
)

// Message type discriminators.
const (
	MessageTypeRealtimeMetrics = "realtime_metrics"
	MessageTypeProcessingStats = "processing_stats"
)

// RealtimeMessage is the wire snapshot published on every productive tick.
// Metrics appear in accumulator registration order. Built fresh per cycle
// and discarded after publishing.
type RealtimeMessage struct {
	MessageType string   `json:"message_type"`
	ServiceID   string   `json:"service_id"`
	RequestNS   int64    `json:"request_ns"`
	Metrics     []Result `json:"metrics"`
}

// ProcessingStatsMessage reports process-wide ingestion counters so
// observers can tell "no data produced" apart from "not receiving".
type ProcessingStatsMessage struct {
	MessageType       string `json:"message_type"`
	ServiceID         string `json:"service_id"`
	RequestNS         int64  `json:"request_ns"`
	TotalRecords      int64  `json:"total_records"`
	UnknownTagRecords int64  `json:"unknown_tag_records"`
}

// Record is one observation handed off by a worker: the metric tag, the
// numeric value, its unit, and the capture timestamp in nanoseconds.
type Record struct {
	Tag       string  `json:"tag"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	Timestamp int64   `json:"timestamp"`
}
