package bus

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/albscui/aiperf/internal/clientmetrics"
)

// Publisher sends topic-framed messages to a relay frontend. Publish does
// not retry: a failed send returns a *TransportError and the next call may
// succeed or fail independently.
type Publisher struct {
	url    string
	dialer *websocket.Dialer
	stats  *clientmetrics.ClientMetrics

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewPublisher creates a publisher for a relay frontend address
// (host:port, no scheme).
func NewPublisher(addr string) *Publisher {
	return &Publisher{
		url: "ws://" + addr,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			Proxy:            http.ProxyFromEnvironment,
		},
		stats: clientmetrics.New(),
	}
}

// Connect establishes the connection to the relay frontend.
func (p *Publisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		return fmt.Errorf("already connected")
	}

	conn, _, err := p.dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		p.stats.IncrementErrors()
		return &TransportError{Op: "connect " + p.url, Err: err}
	}
	p.conn = conn
	p.stats.MarkConnected()
	return nil
}

// Publish sends one payload under the given topic. The topic must carry the
// reserved terminator (see MakeTopic).
func (p *Publisher) Publish(topic string, payload []byte) error {
	if !ValidTopic(topic) {
		return fmt.Errorf("invalid topic %q", topic)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return &TransportError{Op: "publish " + topic, Err: ErrNotConnected}
	}

	frame := EncodeFrame(topic, payload)
	if err := p.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		p.stats.IncrementErrors()
		return &TransportError{Op: "publish " + topic, Err: err}
	}
	p.stats.IncrementSent(int64(len(frame)))
	return nil
}

// Stats returns the publisher's wire counters.
func (p *Publisher) Stats() clientmetrics.Snapshot { return p.stats.Snapshot() }

// Close closes the connection gracefully.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}

	err := p.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(5*time.Second),
	)
	closeErr := p.conn.Close()
	p.conn = nil
	p.stats.MarkDisconnected()

	if err != nil {
		return err
	}
	return closeErr
}
