package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
)

// Validate checks that all required fields are set and values are valid.
func (c *ClientConfig) Validate() error {
	if c.Client.Name == "" {
		return errors.New("client.name is required")
	}
	if len(c.Client.Subscribe) == 0 {
		return errors.New("client.subscribe must list at least one type")
	}

	if c.Server.URL == "" {
		return errors.New("server.url is required")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server.url scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.Server.PingInterval > 0 && c.Server.PingTimeout < c.Server.PingInterval {
		return fmt.Errorf("server.ping_timeout (%v) cannot be less than ping_interval (%v)",
			c.Server.PingTimeout, c.Server.PingInterval)
	}

	if c.Reconnect.Interval <= 0 {
		return errors.New("reconnect.interval must be > 0")
	}
	if c.Reconnect.MaxRetries < 1 {
		return errors.New("reconnect.max_retries must be >= 1")
	}

	if c.Router.QueueSize < 1 {
		return errors.New("router.queue_size must be >= 1")
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Health.Port < 0 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 0 and 65535, got %d", c.Health.Port)
	}

	return nil
}
