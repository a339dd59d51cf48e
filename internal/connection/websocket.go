package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketOpener opens gorilla/websocket sessions. Frames are sent as binary
// messages with per-message compression disabled.
type WebsocketOpener struct {
	cfg    WebsocketConfig
	logger *slog.Logger
}

// NewWebsocketOpener creates a new WebsocketOpener.
func NewWebsocketOpener(cfg WebsocketConfig, logger *slog.Logger) *WebsocketOpener {
	if logger == nil {
		logger = slog.Default()
	}

	return &WebsocketOpener{
		cfg:    cfg,
		logger: logger,
	}
}

// Open starts dialing url in the background.
func (o *WebsocketOpener) Open(url string, ev Events) Transport {
	ctx, cancel := context.WithCancel(context.Background())

	t := &wsTransport{
		cfg:        o.cfg,
		logger:     o.logger.With("url", url),
		ev:         ev.withDefaults(),
		cancelDial: cancel,
		done:       make(chan struct{}),
		status:     StatusConnecting,
	}

	go t.dial(ctx, url)

	return t
}

// wsTransport implements Transport over a single websocket.Conn.
type wsTransport struct {
	cfg    WebsocketConfig
	logger *slog.Logger
	ev     Events

	cancelDial context.CancelFunc
	done       chan struct{}
	stopOnce   sync.Once

	// Write serialization
	writeMu sync.Mutex

	// State
	mu         sync.RWMutex
	conn       *websocket.Conn
	status     Status
	lastPingAt time.Time
	closed     bool
}

func (t *wsTransport) dial(ctx context.Context, url string) {
	dialer := websocket.Dialer{
		HandshakeTimeout:  t.cfg.HandshakeTimeout,
		EnableCompression: false,
	}

	conn, _, err := dialer.DialContext(ctx, url, t.cfg.Header)
	if err != nil {
		t.mu.Lock()
		t.status = StatusClosed
		closed := t.closed
		t.mu.Unlock()

		t.stop()
		if closed {
			return
		}
		t.ev.OnError(err)
		t.ev.OnClose(err)
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.conn = conn
	t.status = StatusOpen
	t.lastPingAt = time.Now()
	t.mu.Unlock()

	// Server pings count as liveness; answer with a pong.
	conn.SetPingHandler(func(data string) error {
		t.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	conn.SetPongHandler(func(data string) error {
		t.touch()
		return nil
	})

	t.logger.Debug("websocket connected")

	// Inbound frames must not be delivered before the open handler returns.
	t.ev.OnOpen()

	go t.readLoop(conn)
	if t.cfg.PingInterval > 0 {
		go t.heartbeatLoop(conn)
	}
}

// Send writes one binary frame.
func (t *wsTransport) Send(data []byte) error {
	t.mu.RLock()
	conn, status := t.conn, t.status
	t.mu.RUnlock()

	if status != StatusOpen {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	}
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// Close gracefully closes the session.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.status = StatusClosed
	conn := t.conn
	t.mu.Unlock()

	t.cancelDial()
	t.stop()

	if conn == nil {
		return nil
	}

	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}

// Status returns the socket status.
func (t *wsTransport) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func (t *wsTransport) touch() {
	t.mu.Lock()
	t.lastPingAt = time.Now()
	t.mu.Unlock()
}

func (t *wsTransport) stop() {
	t.stopOnce.Do(func() {
		close(t.done)
	})
}

// readLoop delivers frames until the socket fails or is closed.
func (t *wsTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			t.status = StatusClosed
			closed := t.closed
			t.mu.Unlock()

			t.stop()
			if !closed {
				t.logger.Debug("websocket read failed", "error", err)
				t.ev.OnClose(err)
			}
			return
		}

		t.ev.OnMessage(data)
	}
}

// heartbeatLoop pings the server and drops stale sessions.
func (t *wsTransport) heartbeatLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(t.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				t.logger.Debug("failed to send ping", "error", err)
			}

			t.mu.RLock()
			lastPing := t.lastPingAt
			t.mu.RUnlock()

			if t.cfg.PingTimeout > 0 && time.Since(lastPing) > t.cfg.PingTimeout {
				t.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", t.cfg.PingTimeout,
				)
				t.ev.OnError(ErrStaleConnection)
				// Unblocks readLoop, which reports the close.
				conn.Close()
				return
			}
		}
	}
}

func (ev Events) withDefaults() Events {
	if ev.OnOpen == nil {
		ev.OnOpen = func() {}
	}
	if ev.OnClose == nil {
		ev.OnClose = func(error) {}
	}
	if ev.OnError == nil {
		ev.OnError = func(error) {}
	}
	if ev.OnMessage == nil {
		ev.OnMessage = func([]byte) {}
	}
	return ev
}
