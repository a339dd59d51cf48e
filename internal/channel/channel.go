// Package channel implements the Message Channel: outbound envelope encoding,
// identification on open, and the inbound decode and subscription filter.
package channel

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/rickgao/soc/internal/connection"
	"github.com/rickgao/soc/internal/protocol"
)

// Link is the connection the channel writes to.
type Link interface {
	// Ready reports whether a send would reach the transport.
	Ready() bool

	// Write sends one raw frame.
	Write(data []byte) error
}

// Sink receives accepted inbound envelopes.
type Sink interface {
	Deliver(env protocol.Envelope)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(env protocol.Envelope)

// Deliver calls f(env).
func (f SinkFunc) Deliver(env protocol.Envelope) { f(env) }

// ChannelStats contains runtime statistics.
type ChannelStats struct {
	Sent         int64
	Dropped      int64 // Sends attempted while not ready
	Received     int64
	Accepted     int64
	Filtered     int64 // Valid envelopes outside the subscription set
	DecodeErrors int64
}

// Channel is the typed message layer of one client.
type Channel struct {
	id     protocol.Identity
	link   Link
	sink   Sink
	logger *slog.Logger

	sent         atomic.Int64
	dropped      atomic.Int64
	received     atomic.Int64
	accepted     atomic.Int64
	filtered     atomic.Int64
	decodeErrors atomic.Int64
}

// New creates a Channel for id. A nil sink discards accepted envelopes.
func New(id protocol.Identity, link Link, sink Sink, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = SinkFunc(func(protocol.Envelope) {})
	}

	return &Channel{
		id:     id,
		link:   link,
		sink:   sink,
		logger: logger,
	}
}

// Send encodes [tag, payload] and writes it. When the link is not ready the
// envelope is dropped and Send returns nil.
func (c *Channel) Send(tag protocol.Tag, payload any) error {
	if !c.link.Ready() {
		c.dropped.Add(1)
		return nil
	}

	data, err := protocol.Encode(tag, payload)
	if err != nil {
		return err
	}

	if err := c.link.Write(data); err != nil {
		if errors.Is(err, connection.ErrNotConnected) {
			// Lost the connection between the check and the write.
			c.dropped.Add(1)
			return nil
		}
		return err
	}

	c.sent.Add(1)
	return nil
}

// Log sends a log event: ["<name>:", values...].
func (c *Channel) Log(values ...any) error {
	return c.Send(protocol.TagLog, protocol.LogPayload(c.id, values...))
}

// Error sends an error event: ["<name>: <ERROR>", values...].
func (c *Channel) Error(values ...any) error {
	return c.Send(protocol.TagError, protocol.ErrorPayload(c.id, values...))
}

// Opened sends the identification envelope on a freshly opened session.
func (c *Channel) Opened(w connection.FrameWriter) error {
	data, err := protocol.Encode(protocol.TagIdentify, c.id.Name())
	if err != nil {
		return err
	}
	if err := w.Send(data); err != nil {
		return err
	}

	c.logger.Debug("identified", "name", c.id.Name())
	return nil
}

// Received decodes an inbound frame and delivers it if subscribed.
// Malformed frames are logged and discarded.
func (c *Channel) Received(data []byte) {
	c.received.Add(1)

	env, err := protocol.Decode(data)
	if err != nil {
		c.decodeErrors.Add(1)
		c.logger.Warn("discarding malformed frame", "error", err, "size", len(data))
		return
	}

	if !c.id.Subscribes(env.Type) {
		c.filtered.Add(1)
		return
	}

	c.accepted.Add(1)
	c.sink.Deliver(env)
}

// Identity returns the identity the channel announces.
func (c *Channel) Identity() protocol.Identity {
	return c.id
}

// Stats returns current statistics.
func (c *Channel) Stats() ChannelStats {
	return ChannelStats{
		Sent:         c.sent.Load(),
		Dropped:      c.dropped.Load(),
		Received:     c.received.Load(),
		Accepted:     c.accepted.Load(),
		Filtered:     c.filtered.Load(),
		DecodeErrors: c.decodeErrors.Load(),
	}
}
