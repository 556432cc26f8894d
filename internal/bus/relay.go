package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/albscui/aiperf/internal/clientmetrics"
)

const defaultQueueSize = 64

// RelayConfig configures the two bind endpoints of a relay. The addresses
// must differ: the frontend accepts publishers, the backend accepts
// subscribers, and the two sides have different wire roles.
type RelayConfig struct {
	FrontendAddr string
	BackendAddr  string
	QueueSize    int // per-subscriber bounded queue, defaults to 64
	Logger       *slog.Logger
}

// Relay is a broker-less forwarder: every data frame arriving on the
// frontend is copied verbatim, in arrival order, to every backend
// subscriber whose registered topic prefix matches the frame's topic.
// Subscription control frames arrive on the backend and feed the filter
// table applied at the fan-out point.
//
// The relay holds no message history. A frame published before a
// subscription registers may be dropped with no replay (the slow-joiner
// limitation); a frame published after registration completes is delivered
// unless the subscriber's bounded queue is full.
type Relay struct {
	cfg    RelayConfig
	logger *slog.Logger
	stats  *clientmetrics.ClientMetrics

	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[*relaySub]struct{}
	closed bool

	frontendLn net.Listener
	backendLn  net.Listener
	frontend   *http.Server
	backend    *http.Server
}

// NewRelay creates a relay. Call Start to bind the endpoints.
func NewRelay(cfg RelayConfig) *Relay {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		cfg:    cfg,
		logger: logger,
		stats:  clientmetrics.New(),
		subs:   make(map[*relaySub]struct{}),
	}
}

// Start binds both endpoints and begins serving. A bind failure (port
// already held, bad address) is fatal configuration: the relay never falls
// back to alternate ports.
func (r *Relay) Start() error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if r.cfg.FrontendAddr == r.cfg.BackendAddr {
		return fmt.Errorf("relay frontend and backend must bind different addresses, both are %q", r.cfg.FrontendAddr)
	}

	frontendLn, err := net.Listen("tcp", r.cfg.FrontendAddr)
	if err != nil {
		return fmt.Errorf("bind relay frontend %s: %w", r.cfg.FrontendAddr, err)
	}
	backendLn, err := net.Listen("tcp", r.cfg.BackendAddr)
	if err != nil {
		frontendLn.Close()
		return fmt.Errorf("bind relay backend %s: %w", r.cfg.BackendAddr, err)
	}

	r.frontendLn = frontendLn
	r.backendLn = backendLn
	r.frontend = &http.Server{Handler: http.HandlerFunc(r.handleFrontend)}
	r.backend = &http.Server{Handler: http.HandlerFunc(r.handleBackend)}

	go r.serve(r.frontend, frontendLn, "frontend")
	go r.serve(r.backend, backendLn, "backend")

	r.logger.Info("relay started",
		"frontend", frontendLn.Addr().String(),
		"backend", backendLn.Addr().String())
	return nil
}

func (r *Relay) serve(srv *http.Server, ln net.Listener, side string) {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		r.logger.Error("relay serve failed", "side", side, "error", err)
	}
}

// FrontendAddr returns the bound frontend address (useful with ":0").
func (r *Relay) FrontendAddr() string {
	if r.frontendLn == nil {
		return r.cfg.FrontendAddr
	}
	return r.frontendLn.Addr().String()
}

// BackendAddr returns the bound backend address.
func (r *Relay) BackendAddr() string {
	if r.backendLn == nil {
		return r.cfg.BackendAddr
	}
	return r.backendLn.Addr().String()
}

// Stats returns the relay's wire counters.
func (r *Relay) Stats() clientmetrics.Snapshot { return r.stats.Snapshot() }

// Stop closes both endpoints and disconnects all peers.
func (r *Relay) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := make([]*relaySub, 0, len(r.subs))
	for sub := range r.subs {
		subs = append(subs, sub)
	}
	r.subs = make(map[*relaySub]struct{})
	r.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}

	var errs []error
	if r.frontend != nil {
		if err := r.frontend.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if r.backend != nil {
		if err := r.backend.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// handleFrontend serves one publisher connection: read frames, fan out.
func (r *Relay) handleFrontend(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Debug("frontend upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		r.forward(frame)
	}
}

// forward copies one data frame to every matching subscriber. Only the
// topic is inspected; the payload is opaque to the relay.
func (r *Relay) forward(frame []byte) {
	topic, _, err := SplitFrame(frame)
	if err != nil {
		r.stats.IncrementErrors()
		r.logger.Debug("dropping unroutable frame", "error", err)
		return
	}
	r.stats.IncrementReceived(int64(len(frame)))

	r.mu.Lock()
	subs := make([]*relaySub, 0, len(r.subs))
	for sub := range r.subs {
		subs = append(subs, sub)
	}
	r.mu.Unlock()

	for _, sub := range subs {
		if !sub.matches(topic) {
			continue
		}
		select {
		case sub.send <- frame:
			r.stats.IncrementSent(int64(len(frame)))
		default:
			// Bounded queue full: drop rather than stall the forwarding loop.
			r.stats.IncrementDropped()
		}
	}
}

// handleBackend serves one subscriber connection: control frames in,
// matching data frames out.
func (r *Relay) handleBackend(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Debug("backend upgrade failed", "error", err)
		return
	}

	sub := &relaySub{
		conn:   conn,
		send:   make(chan []byte, r.cfg.QueueSize),
		topics: make(map[string]struct{}),
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close()
		return
	}
	r.subs[sub] = struct{}{}
	r.mu.Unlock()

	go sub.writeLoop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		subscribe, topic, err := decodeControl(data)
		if err != nil {
			r.logger.Debug("ignoring malformed control frame", "error", err)
			continue
		}
		if subscribe {
			sub.addTopic(topic)
		} else {
			sub.removeTopic(topic)
		}
	}

	r.mu.Lock()
	delete(r.subs, sub)
	r.mu.Unlock()
	sub.close()
}

// relaySub is one backend subscriber with its filter set and bounded queue.
type relaySub struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	topics map[string]struct{}

	closeOnce sync.Once
	done      chan struct{}
}

func (s *relaySub) addTopic(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[topic] = struct{}{}
}

func (s *relaySub) removeTopic(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.topics, topic)
}

func (s *relaySub) matches(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for prefix := range s.topics {
		if strings.HasPrefix(topic, prefix) {
			return true
		}
	}
	return false
}

func (s *relaySub) writeLoop() {
	for {
		select {
		case frame := <-s.send:
			if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *relaySub) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.conn.Close()
	})
}
