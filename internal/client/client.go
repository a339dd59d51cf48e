// Package client wires the Connection Manager, Message Channel and Router
// into a single typed pub/sub client.
package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/soc/internal/channel"
	"github.com/rickgao/soc/internal/connection"
	"github.com/rickgao/soc/internal/protocol"
	"github.com/rickgao/soc/internal/router"
)

// Config identifies a client and where it connects.
type Config struct {
	URL           string
	Name          string
	Subscriptions []protocol.Tag
}

// Stats aggregates statistics of all components.
type Stats struct {
	Connection connection.ManagerStats
	Channel    channel.ChannelStats
	Router     router.RouterStats
}

// Client is a named, subscription-filtered socket client.
type Client struct {
	manager *connection.Manager
	channel *channel.Channel
	router  *router.Router
	logger  *slog.Logger

	startOnce sync.Once
}

// New creates a Client. Nothing is dialed until Connect.
func New(cfg Config, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	id := protocol.NewIdentity(cfg.Name, cfg.Subscriptions...)
	logger := o.logger.With("client", cfg.Name)

	mcfg := o.manager
	mcfg.URL = cfg.URL
	mcfg.Identity = id

	opener := o.opener
	if opener == nil {
		opener = connection.NewWebsocketOpener(o.websocket, logger.With("component", "transport"))
	}

	r := router.NewRouter(o.router, logger.With("component", "router"))
	m := connection.NewManager(mcfg, opener, logger.With("component", "connection"))
	ch := channel.New(id, m, r, logger.With("component", "channel"))
	m.SetHandler(ch)

	return &Client{
		manager: m,
		channel: ch,
		router:  r,
		logger:  logger,
	}
}

// Connect opens the connection and waits until it is ready. See
// connection.Manager.Connect for the error contract.
func (c *Client) Connect(ctx context.Context) error {
	c.startOnce.Do(func() {
		c.router.Start(context.Background())
	})
	return c.manager.Connect(ctx)
}

// Send writes [tag, payload]. It is a silent no-op while not connected.
func (c *Client) Send(tag protocol.Tag, payload any) error {
	return c.channel.Send(tag, payload)
}

// Log sends a log event tagged with the client name.
func (c *Client) Log(values ...any) error {
	return c.channel.Log(values...)
}

// Error sends an error event tagged with the client name.
func (c *Client) Error(values ...any) error {
	return c.channel.Error(values...)
}

// Handle registers fn for accepted envelopes tagged tag.
func (c *Client) Handle(tag protocol.Tag, fn router.HandlerFunc) {
	c.router.Handle(tag, fn)
}

// HandleDefault registers fn for accepted envelopes without a tag handler.
func (c *Client) HandleDefault(fn router.HandlerFunc) {
	c.router.HandleDefault(fn)
}

// Ready reports whether sends currently reach the transport.
func (c *Client) Ready() bool {
	return c.manager.Ready()
}

// State returns the connection state.
func (c *Client) State() connection.State {
	return c.manager.State()
}

// Identity returns the announced identity.
func (c *Client) Identity() protocol.Identity {
	return c.channel.Identity()
}

// Fatal receives the error that ends the client when reconnection is exhausted.
func (c *Client) Fatal() <-chan error {
	return c.manager.Fatal()
}

// Stats returns current statistics.
func (c *Client) Stats() Stats {
	return Stats{
		Connection: c.manager.Stats(),
		Channel:    c.channel.Stats(),
		Router:     c.router.Stats(),
	}
}

// Close disconnects and stops dispatching after draining queued envelopes.
func (c *Client) Close() error {
	err := c.manager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if stopErr := c.router.Stop(ctx); err == nil {
		err = stopErr
	}

	return err
}
