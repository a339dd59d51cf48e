package client

import (
	"log/slog"
	"time"

	"github.com/rickgao/soc/internal/connection"
	"github.com/rickgao/soc/internal/router"
)

type options struct {
	logger    *slog.Logger
	opener    connection.Opener
	websocket connection.WebsocketConfig
	manager   connection.Config
	router    router.Config
}

func defaultOptions() options {
	return options{
		logger:    slog.Default(),
		websocket: connection.DefaultWebsocketConfig(),
		manager:   connection.DefaultConfig(),
		router:    router.DefaultConfig(),
	}
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOpener replaces the websocket transport.
func WithOpener(opener connection.Opener) Option {
	return func(o *options) {
		o.opener = opener
	}
}

// WithWebsocketConfig sets dial, write and heartbeat settings of the default transport.
func WithWebsocketConfig(cfg connection.WebsocketConfig) Option {
	return func(o *options) {
		o.websocket = cfg
	}
}

// WithRetry sets the reconnect interval and retry ceiling.
func WithRetry(interval time.Duration, maxRetries int) Option {
	return func(o *options) {
		o.manager.RetryInterval = interval
		o.manager.MaxRetries = maxRetries
	}
}

// WithConnectTimeout bounds each open attempt. 0 waits for the transport alone.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		o.manager.ConnectTimeout = d
	}
}

// WithRouterConfig sets the dispatch queue configuration.
func WithRouterConfig(cfg router.Config) Option {
	return func(o *options) {
		o.router = cfg
	}
}
