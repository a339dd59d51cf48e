package connection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rickgao/soc/internal/protocol"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testWebsocketConfig() WebsocketConfig {
	cfg := DefaultWebsocketConfig()
	cfg.HandshakeTimeout = time.Second
	return cfg
}

// eventRecorder turns transport callbacks into channels.
type eventRecorder struct {
	opened   chan struct{}
	closed   chan error
	errs     chan error
	messages chan []byte
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{
		opened:   make(chan struct{}, 1),
		closed:   make(chan error, 1),
		errs:     make(chan error, 4),
		messages: make(chan []byte, 16),
	}
}

func (r *eventRecorder) events() Events {
	return Events{
		OnOpen:    func() { r.opened <- struct{}{} },
		OnClose:   func(err error) { r.closed <- err },
		OnError:   func(err error) { r.errs <- err },
		OnMessage: func(data []byte) { r.messages <- data },
	}
}

func (r *eventRecorder) waitOpen(t *testing.T) {
	t.Helper()
	select {
	case <-r.opened:
	case err := <-r.errs:
		t.Fatalf("open failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for open")
	}
}

func readUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestWebsocket_Open(t *testing.T) {
	server := mockWSServer(t, readUntilClosed)
	defer server.Close()

	rec := newEventRecorder()
	tr := NewWebsocketOpener(testWebsocketConfig(), nil).Open(wsURL(server), rec.events())

	rec.waitOpen(t)

	if tr.Status() != StatusOpen {
		t.Errorf("Status = %v, want open", tr.Status())
	}

	if err := tr.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if tr.Status() != StatusClosed {
		t.Errorf("Status = %v, want closed after Close", tr.Status())
	}

	// Second close should be no-op
	if err := tr.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestWebsocket_SendBinary(t *testing.T) {
	type frame struct {
		kind int
		data []byte
	}
	received := make(chan frame, 1)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- frame{kind, data}
		readUntilClosed(conn)
	})
	defer server.Close()

	rec := newEventRecorder()
	tr := NewWebsocketOpener(testWebsocketConfig(), nil).Open(wsURL(server), rec.events())
	defer tr.Close()
	rec.waitOpen(t)

	testMsg := []byte(`[5,{"x":1}]`)
	if err := tr.Send(testMsg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case f := <-received:
		if f.kind != websocket.BinaryMessage {
			t.Errorf("message type = %d, want binary", f.kind)
		}
		if string(f.data) != string(testMsg) {
			t.Errorf("received %q, want %q", f.data, testMsg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for frame")
	}
}

func TestWebsocket_Messages(t *testing.T) {
	testMessages := []string{`[5,1]`, `[5,2]`, `[5,3]`}

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for _, msg := range testMessages {
			if err := conn.WriteMessage(websocket.BinaryMessage, []byte(msg)); err != nil {
				return
			}
		}
		readUntilClosed(conn)
	})
	defer server.Close()

	rec := newEventRecorder()
	tr := NewWebsocketOpener(testWebsocketConfig(), nil).Open(wsURL(server), rec.events())
	defer tr.Close()
	rec.waitOpen(t)

	timeout := time.After(2 * time.Second)
	for i, want := range testMessages {
		select {
		case got := <-rec.messages:
			if string(got) != want {
				t.Errorf("message %d: got %q, want %q", i, got, want)
			}
		case <-timeout:
			t.Fatalf("timeout waiting for messages, received %d of %d", i, len(testMessages))
		}
	}
}

func TestWebsocket_SendBeforeOpen(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()
	defer close(release)

	rec := newEventRecorder()
	tr := NewWebsocketOpener(testWebsocketConfig(), nil).Open(wsURL(server), rec.events())
	defer tr.Close()

	if err := tr.Send([]byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send error = %v, want ErrNotConnected", err)
	}
	if tr.Status() != StatusConnecting {
		t.Errorf("Status = %v, want connecting", tr.Status())
	}
}

func TestWebsocket_DialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	rec := newEventRecorder()
	tr := NewWebsocketOpener(testWebsocketConfig(), nil).Open(wsURL(server), rec.events())
	defer tr.Close()

	select {
	case err := <-rec.errs:
		if err == nil {
			t.Error("expected dial error")
		}
	case <-rec.opened:
		t.Fatal("unexpected open")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error")
	}

	select {
	case <-rec.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for close after dial error")
	}

	if tr.Status() != StatusClosed {
		t.Errorf("Status = %v, want closed", tr.Status())
	}
}

func TestWebsocket_PeerClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"),
			time.Now().Add(time.Second),
		)
	})
	defer server.Close()

	rec := newEventRecorder()
	tr := NewWebsocketOpener(testWebsocketConfig(), nil).Open(wsURL(server), rec.events())
	defer tr.Close()
	rec.waitOpen(t)

	select {
	case err := <-rec.closed:
		if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
			t.Errorf("close error = %v, want going away", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for close")
	}
}

func TestWebsocket_PingHandler(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		if err := conn.WriteControl(websocket.PingMessage, []byte("heartbeat"), time.Now().Add(time.Second)); err != nil {
			t.Logf("ping error: %v", err)
			return
		}
		readUntilClosed(conn)
	})
	defer server.Close()

	rec := newEventRecorder()
	tr := NewWebsocketOpener(testWebsocketConfig(), nil).Open(wsURL(server), rec.events())
	defer tr.Close()
	rec.waitOpen(t)

	// Give time for ping to be processed
	time.Sleep(100 * time.Millisecond)

	if tr.Status() != StatusOpen {
		t.Error("expected transport to be open after ping")
	}
}

func TestWebsocket_StaleConnection(t *testing.T) {
	// The server never reads, so our pings are never answered.
	var wg sync.WaitGroup
	wg.Add(1)
	release := make(chan struct{})
	server := mockWSServer(t, func(conn *websocket.Conn) {
		defer wg.Done()
		<-release
	})
	defer server.Close()
	defer wg.Wait()
	defer close(release)

	cfg := testWebsocketConfig()
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PingTimeout = 30 * time.Millisecond

	rec := newEventRecorder()
	tr := NewWebsocketOpener(cfg, nil).Open(wsURL(server), rec.events())
	defer tr.Close()
	rec.waitOpen(t)

	select {
	case err := <-rec.errs:
		if !errors.Is(err, ErrStaleConnection) {
			t.Errorf("error = %v, want ErrStaleConnection", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for stale error")
	}

	select {
	case <-rec.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for close")
	}
}

func TestManager_WebsocketReconnect(t *testing.T) {
	var (
		mu    sync.Mutex
		conns int
	)
	greetings := make(chan string, 4)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		greetings <- string(data)

		if n == 1 {
			// Drop the first session right after identification.
			return
		}
		readUntilClosed(conn)
	})
	defer server.Close()

	cfg := DefaultConfig()
	cfg.URL = wsURL(server)
	cfg.Identity = protocol.NewIdentity("worker", 5)
	cfg.RetryInterval = 10 * time.Millisecond

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(cfg, NewWebsocketOpener(testWebsocketConfig(), logger), logger)
	m.SetHandler(greeter("hello"))
	defer m.Close()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case g := <-greetings:
			if g != "hello" {
				t.Errorf("greeting %d = %q, want hello", i, g)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timeout waiting for greeting %d", i)
		}
	}

	waitFor(t, 2*time.Second, "reopen", func() bool { return m.Ready() })
	if m.Stats().Reconnects != 1 {
		t.Errorf("Reconnects = %d, want 1", m.Stats().Reconnects)
	}
}

type greeter string

func (g greeter) Opened(w FrameWriter) error { return w.Send([]byte(g)) }
func (g greeter) Received([]byte)            {}
