package config

import (
	"log/slog"
	"time"

	"github.com/rickgao/soc/internal/protocol"
)

// ClientConfig is the root configuration for a socclient instance.
type ClientConfig struct {
	Client    IdentityConfig  `yaml:"client"`
	Server    ServerConfig    `yaml:"server"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Router    RouterConfig    `yaml:"router"`
	Log       LogConfig       `yaml:"log"`
	Health    HealthConfig    `yaml:"health"`
}

// IdentityConfig is announced to the server on every open.
type IdentityConfig struct {
	Name      string         `yaml:"name"`
	Subscribe []protocol.Tag `yaml:"subscribe"` // Inbound types delivered to handlers
}

// ServerConfig holds the websocket endpoint and transport settings.
// Zero durations take the package defaults.
type ServerConfig struct {
	URL              string        `yaml:"url"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"` // Negative disables the heartbeat
	PingTimeout      time.Duration `yaml:"ping_timeout"`
}

// ReconnectConfig bounds recovery after an established connection closes.
// Zero values take the package defaults.
type ReconnectConfig struct {
	Interval       time.Duration `yaml:"interval"`
	MaxRetries     int           `yaml:"max_retries"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// RouterConfig sizes the inbound dispatch queue.
type RouterConfig struct {
	QueueSize int `yaml:"queue_size"`
	MaxQueue  int `yaml:"max_queue"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int `yaml:"port"` // 0 disables the endpoint
}

// SlogLevel maps Level to a slog level. Unknown values map to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
