package clientmetrics

import (
	"sync"
	"testing"
)

func TestCounters(t *testing.T) {
	m := New()
	m.IncrementSent(100)
	m.IncrementSent(50)
	m.IncrementReceived(30)
	m.IncrementDropped()
	m.IncrementErrors()

	s := m.Snapshot()
	if s.FramesSent != 2 || s.BytesSent != 150 {
		t.Errorf("expected 2 frames / 150 bytes sent, got %d / %d", s.FramesSent, s.BytesSent)
	}
	if s.FramesReceived != 1 || s.BytesReceived != 30 {
		t.Errorf("expected 1 frame / 30 bytes received, got %d / %d", s.FramesReceived, s.BytesReceived)
	}
	if s.Dropped != 1 {
		t.Errorf("expected 1 dropped, got %d", s.Dropped)
	}
	if s.Errors != 1 {
		t.Errorf("expected 1 error, got %d", s.Errors)
	}
}

func TestConnectionDuration(t *testing.T) {
	m := New()
	if d := m.Snapshot().ConnectionDuration; d != 0 {
		t.Errorf("expected zero duration before connect, got %s", d)
	}
	m.MarkConnected()
	if d := m.Snapshot().ConnectionDuration; d <= 0 {
		t.Errorf("expected positive duration after connect, got %s", d)
	}
	m.MarkDisconnected()
	if d := m.Snapshot().ConnectionDuration; d != 0 {
		t.Errorf("expected zero duration after disconnect, got %s", d)
	}
}

func TestConcurrentIncrements(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.IncrementSent(1)
				m.IncrementReceived(1)
			}
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	if s.FramesSent != 800 || s.FramesReceived != 800 {
		t.Errorf("expected 800/800 frames, got %d/%d", s.FramesSent, s.FramesReceived)
	}
}
