package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultPingInterval      = 30 * time.Second
	DefaultPingTimeout       = 60 * time.Second
	DefaultReconnectInterval = 1 * time.Second
	DefaultMaxRetries        = 10
	DefaultConnectTimeout    = 10 * time.Second
	DefaultQueueSize         = 256
	DefaultMaxQueue          = 100000
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

func (c *ClientConfig) applyDefaults() {
	// Server defaults
	if c.Server.HandshakeTimeout == 0 {
		c.Server.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.PingInterval == 0 {
		c.Server.PingInterval = DefaultPingInterval
	}
	if c.Server.PingTimeout == 0 {
		c.Server.PingTimeout = DefaultPingTimeout
	}

	// Reconnect defaults
	if c.Reconnect.Interval == 0 {
		c.Reconnect.Interval = DefaultReconnectInterval
	}
	if c.Reconnect.MaxRetries == 0 {
		c.Reconnect.MaxRetries = DefaultMaxRetries
	}
	if c.Reconnect.ConnectTimeout == 0 {
		c.Reconnect.ConnectTimeout = DefaultConnectTimeout
	}

	// Router defaults
	if c.Router.QueueSize == 0 {
		c.Router.QueueSize = DefaultQueueSize
	}
	if c.Router.MaxQueue == 0 {
		c.Router.MaxQueue = DefaultMaxQueue
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
