package bus

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/albscui/aiperf/internal/clientmetrics"
)

// Handler processes one inbound frame. Handlers for a topic run
// synchronously, in registration order, before the next frame is read.
type Handler func(topic string, payload []byte)

// Subscriber receives topic-framed messages from a relay backend and
// dispatches them to registered handlers. Interest is registered by topic
// prefix; with the terminator convention a prefix like "realtime_metrics$"
// is an exact match in practice.
type Subscriber struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger
	stats  *clientmetrics.ClientMetrics

	mu       sync.Mutex
	conn     *websocket.Conn
	order    []string
	handlers map[string][]Handler
}

// NewSubscriber creates a subscriber for a relay backend address
// (host:port, no scheme).
func NewSubscriber(addr string, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		url: "ws://" + addr,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			Proxy:            http.ProxyFromEnvironment,
		},
		logger:   logger,
		stats:    clientmetrics.New(),
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for all topics sharing the given prefix.
// Multiple handlers per prefix are allowed and run in registration order.
// If the subscriber is already connected the subscription is sent to the
// relay immediately; otherwise it is sent on Connect.
func (s *Subscriber) Subscribe(topicPrefix string, h Handler) error {
	if topicPrefix == "" {
		return fmt.Errorf("topic prefix cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handlers[topicPrefix]; !ok {
		s.order = append(s.order, topicPrefix)
	}
	s.handlers[topicPrefix] = append(s.handlers[topicPrefix], h)

	if s.conn != nil {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, encodeControl(opSubscribe, topicPrefix)); err != nil {
			s.stats.IncrementErrors()
			return &TransportError{Op: "subscribe " + topicPrefix, Err: err}
		}
	}
	return nil
}

// Unsubscribe withdraws interest in a topic prefix and drops its handlers.
func (s *Subscriber) Unsubscribe(topicPrefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handlers[topicPrefix]; !ok {
		return nil
	}
	delete(s.handlers, topicPrefix)
	for i, p := range s.order {
		if p == topicPrefix {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	if s.conn != nil {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, encodeControl(opUnsubscribe, topicPrefix)); err != nil {
			s.stats.IncrementErrors()
			return &TransportError{Op: "unsubscribe " + topicPrefix, Err: err}
		}
	}
	return nil
}

// Connect dials the relay backend and registers all current subscriptions.
// Returns once the relay has accepted the control frames into its transport
// buffer; a message published before that registration completes may still
// be missed (slow joiner).
func (s *Subscriber) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return fmt.Errorf("already connected")
	}

	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.stats.IncrementErrors()
		return &TransportError{Op: "connect " + s.url, Err: err}
	}

	for _, prefix := range s.order {
		if err := conn.WriteMessage(websocket.BinaryMessage, encodeControl(opSubscribe, prefix)); err != nil {
			conn.Close()
			s.stats.IncrementErrors()
			return &TransportError{Op: "subscribe " + prefix, Err: err}
		}
	}

	s.conn = conn
	s.stats.MarkConnected()
	return nil
}

// Start runs the receive loop until the context is cancelled or the
// connection closes. Malformed frames are counted and skipped; they never
// terminate the loop.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return &TransportError{Op: "start", Err: ErrNotConnected}
	}

	// Unblock ReadMessage when the context ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TransportError{Op: "receive", Err: err}
		}

		topic, payload, err := SplitFrame(frame)
		if err != nil {
			s.stats.IncrementErrors()
			s.logger.Warn("skipping malformed frame", "error", &DecodeError{Err: err})
			continue
		}
		s.stats.IncrementReceived(int64(len(frame)))
		s.dispatch(topic, payload)
	}
}

// dispatch runs every handler whose prefix matches the topic, in
// registration order, synchronously.
func (s *Subscriber) dispatch(topic string, payload []byte) {
	s.mu.Lock()
	var matched []Handler
	for _, prefix := range s.order {
		if len(topic) >= len(prefix) && topic[:len(prefix)] == prefix {
			matched = append(matched, s.handlers[prefix]...)
		}
	}
	s.mu.Unlock()

	for _, h := range matched {
		h(topic, payload)
	}
}

// Stats returns the subscriber's wire counters.
func (s *Subscriber) Stats() clientmetrics.Snapshot { return s.stats.Snapshot() }

// Close closes the connection.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(5*time.Second),
	)
	err := s.conn.Close()
	s.conn = nil
	s.stats.MarkDisconnected()
	return err
}
