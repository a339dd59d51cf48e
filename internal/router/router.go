package router

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/soc/internal/protocol"
)

// Router dispatches accepted envelopes to per-tag handlers on its own
// goroutine, so a slow consumer never stalls the socket read loop.
type Router struct {
	cfg    Config
	logger *slog.Logger

	queue *Queue[protocol.Envelope]

	mu       sync.RWMutex
	handlers map[protocol.Tag]HandlerFunc
	fallback HandlerFunc

	// Lifecycle
	stopCtx func() bool
	wg      sync.WaitGroup

	delivered  atomic.Int64
	dispatched atomic.Int64
	unhandled  atomic.Int64
	panics     atomic.Int64
}

// NewRouter creates a new Router.
func NewRouter(cfg Config, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		cfg:      cfg,
		logger:   logger,
		queue:    NewQueue[protocol.Envelope](cfg.QueueSize, cfg.MaxQueue),
		handlers: make(map[protocol.Tag]HandlerFunc),
	}
}

// Handle registers fn for envelopes tagged tag, replacing any previous one.
func (r *Router) Handle(tag protocol.Tag, fn HandlerFunc) {
	r.mu.Lock()
	r.handlers[tag] = fn
	r.mu.Unlock()
}

// HandleDefault registers fn for tags without a dedicated handler.
func (r *Router) HandleDefault(fn HandlerFunc) {
	r.mu.Lock()
	r.fallback = fn
	r.mu.Unlock()
}

// Deliver enqueues env for dispatch.
func (r *Router) Deliver(env protocol.Envelope) {
	r.delivered.Add(1)
	if !r.queue.Push(env) {
		r.logger.Warn("router queue full or stopped, dropping envelope", "type", env.Type)
	}
}

// Start begins dispatching. Cancelling ctx stops the router like Stop.
func (r *Router) Start(ctx context.Context) error {
	r.stopCtx = context.AfterFunc(ctx, r.queue.Close)

	r.wg.Add(1)
	go r.dispatchLoop()

	r.logger.Info("message router started",
		"queue_size", r.cfg.QueueSize,
		"max_queue", r.cfg.MaxQueue,
	)

	return nil
}

// Stop dispatches what is already queued and shuts down.
func (r *Router) Stop(ctx context.Context) error {
	r.logger.Info("stopping message router")

	if r.stopCtx != nil {
		r.stopCtx()
	}
	r.queue.Close()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("message router stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("message router stop timed out")
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (r *Router) Stats() RouterStats {
	return RouterStats{
		Delivered:  r.delivered.Load(),
		Dispatched: r.dispatched.Load(),
		Unhandled:  r.unhandled.Load(),
		Panics:     r.panics.Load(),
		Queue:      r.queue.Stats(),
	}
}

func (r *Router) dispatchLoop() {
	defer r.wg.Done()

	for {
		env, ok := r.queue.Pop()
		if !ok {
			return
		}
		r.dispatch(env)
	}
}

func (r *Router) dispatch(env protocol.Envelope) {
	r.mu.RLock()
	fn, ok := r.handlers[env.Type]
	if !ok {
		fn = r.fallback
	}
	r.mu.RUnlock()

	if fn == nil {
		r.unhandled.Add(1)
		r.logger.Debug("no handler for envelope", "type", env.Type)
		return
	}

	defer func() {
		if p := recover(); p != nil {
			r.panics.Add(1)
			r.logger.Error("envelope handler panicked", "type", env.Type, "panic", p)
		}
	}()

	r.dispatched.Add(1)
	fn(env)
}
