package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Manager owns the single connection of a client and recovers it when lost.
type Manager struct {
	cfg    Config
	opener Opener
	logger *slog.Logger

	handler Handler

	// State machine, guarded by mu
	mu       sync.RWMutex
	state    State
	current  *session
	retries  int
	closed   bool
	fatalErr error

	episodes   atomic.Int64
	reconnects atomic.Int64

	fatal chan error
	done  chan struct{}
	wg    sync.WaitGroup
}

// session is one transport plus the one-shot outcome of opening it.
type session struct {
	id        uuid.UUID
	transport Transport

	opened chan struct{}
	once   sync.Once
	err    error
}

func newSession() *session {
	return &session{
		id:     uuid.New(),
		opened: make(chan struct{}),
	}
}

// resolved reports whether the open outcome is already decided.
func (s *session) resolved() bool {
	select {
	case <-s.opened:
		return true
	default:
		return false
	}
}

// resolve records the open outcome. Only the first call has an effect.
func (s *session) resolve(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.opened)
	})
}

// NewManager creates a new Connection Manager. A nil opener dials websockets
// with DefaultWebsocketConfig.
func NewManager(cfg Config, opener Opener, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opener == nil {
		opener = NewWebsocketOpener(DefaultWebsocketConfig(), logger)
	}

	return &Manager{
		cfg:    cfg,
		opener: opener,
		logger: logger,
		state:  StateIdle,
		fatal:  make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// SetHandler registers the receiver of session events. Call before Connect.
func (m *Manager) SetHandler(h Handler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// Connect opens the transport and blocks until it is Open, the open fails,
// ctx is done or Config.ConnectTimeout elapses.
//
// A *ConfigurationError is returned before any transport is created. Open
// failures are returned as *TransportOpenError. Calling Connect while a
// connect or reconnect is running returns ErrConnectInProgress; calling it
// while Open returns nil.
func (m *Manager) Connect(ctx context.Context) error {
	if err := m.cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	switch m.state {
	case StateOpen:
		m.mu.Unlock()
		return nil
	case StateConnecting, StateReconnecting:
		m.mu.Unlock()
		return ErrConnectInProgress
	case StateFailed:
		err := m.fatalErr
		m.mu.Unlock()
		return err
	}
	sess := m.openLocked()
	m.mu.Unlock()

	if err := m.await(ctx, sess, StateIdle); err != nil {
		m.logger.Warn("connect failed", "session", sess.id, "error", err)
		return &TransportOpenError{URL: m.cfg.URL, Err: err}
	}

	return nil
}

// Ready reports whether the transport can accept sends right now.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateOpen && m.current != nil && m.current.transport.Status() == StatusOpen
}

// Write sends a raw frame on the open transport.
func (m *Manager) Write(data []byte) error {
	m.mu.RLock()
	if m.state != StateOpen || m.current == nil {
		m.mu.RUnlock()
		return ErrNotConnected
	}
	t := m.current.transport
	m.mu.RUnlock()

	return t.Send(data)
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Retries returns the failed attempts of the current reconnect episode.
func (m *Manager) Retries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.retries
}

// Fatal receives a *RetryExhaustedError once the retry ceiling is exceeded.
// The owner of the process decides how to exit.
func (m *Manager) Fatal() <-chan error {
	return m.fatal
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := ManagerStats{
		State:      m.state,
		Retries:    m.retries,
		Episodes:   m.episodes.Load(),
		Reconnects: m.reconnects.Load(),
	}
	if m.current != nil {
		stats.Session = m.current.id
	}
	return stats
}

// Close shuts the connection down and stops any reconnect episode.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sess := m.current
	m.current = nil
	if m.state != StateFailed {
		m.setStateLocked(StateIdle)
	}
	m.mu.Unlock()

	close(m.done)

	var err error
	if sess != nil {
		sess.resolve(ErrClosed)
		err = sess.transport.Close()
	}

	m.wg.Wait()
	m.logger.Info("connection manager stopped")
	return err
}

// openLocked starts a transport session and enters Connecting. m.mu must be held.
func (m *Manager) openLocked() *session {
	sess := newSession()
	m.current = sess
	m.setStateLocked(StateConnecting)

	sess.transport = m.opener.Open(m.cfg.URL, Events{
		OnOpen:    func() { m.onOpen(sess) },
		OnClose:   func(err error) { m.onClose(sess, err) },
		OnError:   func(err error) { m.onError(sess, err) },
		OnMessage: func(data []byte) { m.onMessage(sess, data) },
	})

	return sess
}

// await waits for the open outcome of sess. On failure the session is torn
// down and the manager falls back to the given state.
func (m *Manager) await(ctx context.Context, sess *session, fallback State) error {
	if m.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ConnectTimeout)
		defer cancel()
	}

	var err error
	select {
	case <-sess.opened:
		err = sess.err
	case <-ctx.Done():
		err = ctx.Err()
	case <-m.done:
		err = ErrClosed
	}
	if err == nil {
		return nil
	}

	m.mu.Lock()
	if m.current == sess && m.state == StateOpen {
		// Lost the race against the open event.
		m.mu.Unlock()
		return nil
	}
	if m.current == sess {
		m.current = nil
		if !m.closed {
			m.setStateLocked(fallback)
		}
	}
	m.mu.Unlock()

	sess.resolve(err)
	sess.transport.Close()
	return err
}

func (m *Manager) onOpen(sess *session) {
	m.mu.RLock()
	ok := m.current == sess && m.state == StateConnecting
	handler := m.handler
	m.mu.RUnlock()

	if !ok {
		return
	}

	// Identification goes out before Ready can report true, so it always
	// precedes application frames.
	if handler != nil {
		if err := handler.Opened(sess.transport); err != nil {
			sess.resolve(fmt.Errorf("identify: %w", err))
			return
		}
	}

	m.mu.Lock()
	if m.current != sess || m.state != StateConnecting || sess.resolved() {
		// Closed, failed or timed out while the handler ran.
		m.mu.Unlock()
		return
	}
	m.setStateLocked(StateOpen)
	m.retries = 0
	sess.resolve(nil)
	m.mu.Unlock()

	m.logger.Info("connection open", "url", m.cfg.URL, "session", sess.id)
}

func (m *Manager) onClose(sess *session, err error) {
	m.mu.Lock()
	if m.current != sess || m.closed {
		m.mu.Unlock()
		return
	}

	switch m.state {
	case StateConnecting:
		if err == nil {
			err = ErrClosedBeforeOpen
		}
		sess.resolve(err)
		m.mu.Unlock()

	case StateOpen:
		m.current = nil
		m.retries = 0
		m.setStateLocked(StateReconnecting)
		m.wg.Add(1)
		m.mu.Unlock()

		m.episodes.Add(1)
		m.logger.Warn("connection lost, reconnecting",
			"session", sess.id,
			"error", err,
		)
		sess.transport.Close()
		go m.reconnect()

	default:
		m.mu.Unlock()
	}
}

func (m *Manager) onError(sess *session, err error) {
	m.mu.RLock()
	connecting := m.current == sess && m.state == StateConnecting
	if connecting {
		sess.resolve(err)
	}
	m.mu.RUnlock()

	if connecting {
		return
	}
	m.logger.Debug("transport error", "session", sess.id, "error", err)
}

func (m *Manager) onMessage(sess *session, data []byte) {
	m.mu.RLock()
	ok := m.current == sess && m.state == StateOpen
	handler := m.handler
	m.mu.RUnlock()

	if ok && handler != nil {
		handler.Received(data)
	}
}

// reconnect runs one reconnect episode: an attempt every RetryInterval until
// the transport opens or more than MaxRetries attempts have failed.
func (m *Manager) reconnect() {
	defer m.wg.Done()

	for {
		timer := time.NewTimer(m.cfg.RetryInterval)
		select {
		case <-m.done:
			timer.Stop()
			return
		case <-timer.C:
		}

		m.mu.Lock()
		if m.closed || m.state != StateReconnecting {
			m.mu.Unlock()
			return
		}
		attempt := m.retries + 1
		sess := m.openLocked()
		m.mu.Unlock()

		m.logger.Info("attempting reconnection",
			"attempt", attempt,
			"session", sess.id,
		)

		err := m.await(context.Background(), sess, StateReconnecting)
		if err == nil {
			m.reconnects.Add(1)
			m.logger.Info("reconnected", "session", sess.id, "attempt", attempt)
			return
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.retries++
		failed := m.retries
		if failed > m.cfg.MaxRetries {
			fatal := &RetryExhaustedError{Attempts: failed, Err: err}
			m.fatalErr = fatal
			m.setStateLocked(StateFailed)
			m.mu.Unlock()

			m.logger.Error("reconnection failed, giving up", "attempts", failed, "error", err)
			m.fatal <- fatal
			return
		}
		m.mu.Unlock()

		m.logger.Warn("reconnection failed, retrying",
			"error", &ReconnectAttemptError{Attempt: failed, Err: err},
		)
	}
}

// setStateLocked moves the state machine. m.mu must be held.
func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.logger.Debug("state change", "from", m.state, "to", s)
	m.state = s
}
