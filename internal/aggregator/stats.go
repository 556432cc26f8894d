package aggregator

import "sync/atomic"

// ProcessingStats tracks process-wide ingestion counters. Reset at
// aggregation start, incremented on every ingested record, and read by the
// snapshot cycle to decide whether anything new arrived since the last
// publish.
type ProcessingStats struct {
	totalRecords int64
	unknownTag   int64
	invalid      int64
	overflow     int64
}

// Reset clears all counters.
func (s *ProcessingStats) Reset() {
	atomic.StoreInt64(&s.totalRecords, 0)
	atomic.StoreInt64(&s.unknownTag, 0)
	atomic.StoreInt64(&s.invalid, 0)
	atomic.StoreInt64(&s.overflow, 0)
}

// IncrementTotal counts one ingested record.
func (s *ProcessingStats) IncrementTotal() { atomic.AddInt64(&s.totalRecords, 1) }

// IncrementUnknownTag counts a record whose tag has no accumulator.
func (s *ProcessingStats) IncrementUnknownTag() { atomic.AddInt64(&s.unknownTag, 1) }

// IncrementInvalid counts a record rejected as an invalid observation.
func (s *ProcessingStats) IncrementInvalid() { atomic.AddInt64(&s.invalid, 1) }

// IncrementOverflow counts a record dropped because the ingest queue was full.
func (s *ProcessingStats) IncrementOverflow() { atomic.AddInt64(&s.overflow, 1) }

// Total returns the number of ingested records.
func (s *ProcessingStats) Total() int64 { return atomic.LoadInt64(&s.totalRecords) }

// UnknownTag returns the number of unknown-tag records.
func (s *ProcessingStats) UnknownTag() int64 { return atomic.LoadInt64(&s.unknownTag) }

// Invalid returns the number of invalid observations.
func (s *ProcessingStats) Invalid() int64 { return atomic.LoadInt64(&s.invalid) }

// Overflow returns the number of records dropped on ingest overflow.
func (s *ProcessingStats) Overflow() int64 { return atomic.LoadInt64(&s.overflow) }
