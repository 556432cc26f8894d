// Package clientmetrics tracks wire-level counters for bus endpoints:
// frames and bytes moved, drops from full queues, and transport errors.
package clientmetrics

import (
	"sync"
	"time"
)

// ClientMetrics tracks connection and frame statistics for a bus endpoint.
type ClientMetrics struct {
	mu          sync.Mutex
	connectTime time.Time
	framesSent  int64
	framesRecv  int64
	bytesSent   int64
	bytesRecv   int64
	dropped     int64
	errors      int64
}

// New creates a new ClientMetrics instance.
func New() *ClientMetrics {
	return &ClientMetrics{}
}

// MarkConnected records the connection time.
func (m *ClientMetrics) MarkConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectTime = time.Now()
}

// MarkDisconnected clears the connection time.
func (m *ClientMetrics) MarkDisconnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectTime = time.Time{}
}

// IncrementSent increments frames sent and bytes sent counters.
func (m *ClientMetrics) IncrementSent(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.framesSent++
	m.bytesSent += bytes
}

// IncrementReceived increments frames received and bytes received counters.
func (m *ClientMetrics) IncrementReceived(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.framesRecv++
	m.bytesRecv += bytes
}

// IncrementDropped increments the dropped-frame counter. Frames are dropped
// when a subscriber's bounded queue is full.
func (m *ClientMetrics) IncrementDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped++
}

// IncrementErrors increments the error counter.
func (m *ClientMetrics) IncrementErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	ConnectionDuration time.Duration
	FramesSent         int64
	FramesReceived     int64
	BytesSent          int64
	BytesReceived      int64
	Dropped            int64
	Errors             int64
}

// Snapshot returns a consistent snapshot of all counters.
func (m *ClientMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	duration := time.Duration(0)
	if !m.connectTime.IsZero() {
		duration = time.Since(m.connectTime)
	}

	return Snapshot{
		ConnectionDuration: duration,
		FramesSent:         m.framesSent,
		FramesReceived:     m.framesRecv,
		BytesSent:          m.bytesSent,
		BytesReceived:      m.bytesRecv,
		Dropped:            m.dropped,
		Errors:             m.errors,
	}
}
