// Package metricsclient is the reference consumer for the realtime metrics
// stream: it connects to a relay backend, subscribes to the metrics topic,
// and hands every decoded snapshot to a caller-supplied callback.
package metricsclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/albscui/aiperf/internal/bus"
	"github.com/albscui/aiperf/internal/metrics"
)

const (
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 5 * time.Second
)

// Callback receives each decoded snapshot. A malformed payload is delivered
// as a nil message with a *bus.DecodeError; the receive loop continues
// either way.
type Callback func(msg *metrics.RealtimeMessage, err error)

// RawHandler receives frames from additional topics the client has no
// schema for (processing stats, telemetry).
type RawHandler func(topic string, payload []byte)

// Client subscribes to the realtime metrics stream. The relay being
// unreachable at startup is tolerated: connection attempts back off up to
// maxRetryDelay and continue until the context ends. Receiving zero
// messages is not an error.
type Client struct {
	addr      string
	logger    *slog.Logger
	callback  Callback
	rawTopics []string
	raw       RawHandler
}

// New creates a client for a relay backend address (host:port).
func New(addr string, cb Callback, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{addr: addr, logger: logger, callback: cb}
}

// WatchRaw registers additional topics whose frames are passed through
// undecoded. Must be called before Run.
func (c *Client) WatchRaw(handler RawHandler, topics ...string) {
	c.raw = handler
	c.rawTopics = append(c.rawTopics, topics...)
}

// Run connects, subscribes, and receives until the context ends. On a
// transport failure the client reconnects with backoff; a fresh
// subscription after reconnect may miss frames published in between
// (slow joiner), which callers must tolerate.
func (c *Client) Run(ctx context.Context) error {
	for {
		sub := bus.NewSubscriber(c.addr, c.logger)
		if err := sub.Subscribe(metrics.TopicRealtimeMetrics, c.handleFrame); err != nil {
			return err
		}
		for _, topic := range c.rawTopics {
			if err := sub.Subscribe(topic, func(t string, payload []byte) {
				if c.raw != nil {
					c.raw(t, payload)
				}
			}); err != nil {
				return err
			}
		}

		if err := c.connectWithBackoff(ctx, sub); err != nil {
			return err
		}
		c.logger.Info("subscribed", "addr", c.addr, "topic", metrics.TopicRealtimeMetrics)

		err := sub.Start(ctx)
		sub.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("connection lost, reconnecting", "error", err)
	}
}

func (c *Client) connectWithBackoff(ctx context.Context, sub *bus.Subscriber) error {
	delay := baseRetryDelay
	for {
		err := sub.Connect(ctx)
		if err == nil {
			return nil
		}
		var transportErr *bus.TransportError
		if !errors.As(err, &transportErr) {
			return err
		}
		c.logger.Debug("relay unreachable, retrying", "addr", c.addr, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

func (c *Client) handleFrame(topic string, payload []byte) {
	var msg metrics.RealtimeMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.callback(nil, &bus.DecodeError{Topic: topic, Err: err})
		return
	}
	c.callback(&msg, nil)
}
