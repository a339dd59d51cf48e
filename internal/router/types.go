package router

import "github.com/rickgao/soc/internal/protocol"

// Config holds configuration for the Router.
type Config struct {
	QueueSize int // Initial queue capacity. Default: 256
	MaxQueue  int // Envelopes held before new ones are dropped (0 = unbounded). Default: 100000
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize: 256,
		MaxQueue:  100000,
	}
}

// HandlerFunc consumes one accepted envelope.
type HandlerFunc func(env protocol.Envelope)

// RouterStats contains runtime statistics.
type RouterStats struct {
	Delivered  int64 // Envelopes handed in by the channel
	Dispatched int64 // Envelopes passed to a handler
	Unhandled  int64 // Envelopes with no handler for their tag
	Panics     int64
	Queue      QueueStats
}

// QueueStats contains queue statistics.
type QueueStats struct {
	Count    int
	Capacity int
	Pushed   int64
	Popped   int64
	Dropped  int64
	Resizes  int
}
