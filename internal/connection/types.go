package connection

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rickgao/soc/internal/protocol"
)

// State is the lifecycle state of a Manager.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Status is what a Transport reports about its socket.
type Status int

const (
	StatusConnecting Status = iota
	StatusOpen
	StatusClosed
)

// Events are the notifications a Transport emits. Callbacks run on transport
// goroutines; OnMessage is never called before OnOpen has returned.
type Events struct {
	OnOpen    func()
	OnClose   func(err error)
	OnError   func(err error)
	OnMessage func(data []byte)
}

// Transport is one socket session.
type Transport interface {
	// Send writes a single binary frame.
	Send(data []byte) error

	// Close tears the session down. Safe to call more than once.
	Close() error

	// Status returns the current socket status.
	Status() Status
}

// Opener starts transports. Open must return immediately with a Transport in
// StatusConnecting and report the outcome through ev from another goroutine.
type Opener interface {
	Open(url string, ev Events) Transport
}

// FrameWriter writes raw frames to the session being opened.
type FrameWriter interface {
	Send(data []byte) error
}

// Handler receives session events from a Manager.
type Handler interface {
	// Opened runs once per transition into Open, before Ready reports true
	// and before any inbound frame of the session is delivered. A non-nil
	// error fails the open attempt.
	Opened(w FrameWriter) error

	// Received is called for every inbound frame while Open.
	Received(data []byte)
}

// Config configures a Manager.
type Config struct {
	URL            string
	Identity       protocol.Identity
	RetryInterval  time.Duration // Fixed delay before every reconnect attempt
	MaxRetries     int           // Consecutive failed attempts tolerated per episode
	ConnectTimeout time.Duration // Upper bound on a single open attempt (0 = none)
}

// DefaultConfig returns the retry policy of the protocol: one attempt per
// second, fatal after more than 10 consecutive failures.
func DefaultConfig() Config {
	return Config{
		RetryInterval:  1 * time.Second,
		MaxRetries:     10,
		ConnectTimeout: 10 * time.Second,
	}
}

// Validate checks that the client can attempt a connection.
func (c Config) Validate() error {
	if c.URL == "" {
		return &ConfigurationError{Field: "url"}
	}
	if c.Identity.Name() == "" {
		return &ConfigurationError{Field: "clientName"}
	}
	if len(c.Identity.Subscriptions()) == 0 {
		return &ConfigurationError{Field: "subscribedTypes"}
	}
	return nil
}

// WebsocketConfig configures WebsocketOpener.
type WebsocketConfig struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration // Write deadline for sends
	PingInterval     time.Duration // How often to ping the server (0 = never)
	PingTimeout      time.Duration // Max time without ping/pong before the session is stale
	Header           http.Header
}

// DefaultWebsocketConfig returns sensible defaults.
func DefaultWebsocketConfig() WebsocketConfig {
	return WebsocketConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
	}
}

// ManagerStats is a snapshot of the manager.
type ManagerStats struct {
	State      State
	Session    uuid.UUID // Current transport session (uuid.Nil when none)
	Retries    int       // Failed attempts in the current reconnect episode
	Episodes   int64     // Reconnect episodes started
	Reconnects int64     // Episodes that recovered
}
