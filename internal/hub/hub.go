// Package hub implements a small fan-out server for the envelope protocol.
//
// Every peer must identify with [2, "<name>"] before anything it sends is
// forwarded. After that, each frame a peer sends is relayed unchanged to all
// other identified peers; filtering by type is left to the receivers. Log and
// error events are also written to the hub's own logger.
package hub

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rickgao/soc/internal/protocol"
)

var errNameNotString = errors.New("identification payload is not a string")

// Peer describes a connected client.
type Peer struct {
	ID          uuid.UUID
	Name        string // Empty until identified
	Remote      string
	ConnectedAt time.Time
}

// Stats contains runtime statistics.
type Stats struct {
	Peers        int
	Frames       int64
	Relayed      int64
	DecodeErrors int64
	Unidentified int64 // Frames discarded because the sender had not identified
}

type peer struct {
	info Peer

	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (p *peer) send(data []byte, timeout time.Duration) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.conn.SetWriteDeadline(time.Now().Add(timeout))
	return p.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Hub is an http.Handler that upgrades requests to websocket peers.
type Hub struct {
	logger       *slog.Logger
	upgrader     websocket.Upgrader
	writeTimeout time.Duration

	mu     sync.RWMutex
	peers  map[uuid.UUID]*peer
	closed bool

	frames       atomic.Int64
	relayed      atomic.Int64
	decodeErrors atomic.Int64
	unidentified atomic.Int64
}

// New creates a new Hub.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		writeTimeout: 5 * time.Second,
		peers:        make(map[uuid.UUID]*peer),
	}
}

// ServeHTTP upgrades the request and serves the peer until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "hub closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	p := &peer{
		info: Peer{
			ID:          uuid.New(),
			Remote:      r.RemoteAddr,
			ConnectedAt: time.Now(),
		},
		conn: conn,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.peers[p.info.ID] = p
	h.mu.Unlock()

	h.logger.Debug("peer connected", "peer", p.info.ID, "remote", p.info.Remote)

	defer func() {
		h.mu.Lock()
		delete(h.peers, p.info.ID)
		h.mu.Unlock()
		conn.Close()

		h.logger.Info("peer disconnected", "peer", p.info.ID, "name", h.nameOf(p))
	}()

	h.readLoop(p)
}

// Peers returns identified peers sorted by name.
func (h *Hub) Peers() []Peer {
	h.mu.RLock()
	out := make([]Peer, 0, len(h.peers))
	for _, p := range h.peers {
		if p.info.Name != "" {
			out = append(out, p.info)
		}
	}
	h.mu.RUnlock()

	slices.SortFunc(out, func(a, b Peer) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Stats returns current statistics.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	n := len(h.peers)
	h.mu.RUnlock()

	return Stats{
		Peers:        n,
		Frames:       h.frames.Load(),
		Relayed:      h.relayed.Load(),
		DecodeErrors: h.decodeErrors.Load(),
		Unidentified: h.unidentified.Load(),
	}
}

// Close disconnects every peer and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	peers := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		p.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "hub shutting down"),
			time.Now().Add(time.Second),
		)
		p.conn.Close()
	}
	return nil
}

func (h *Hub) readLoop(p *peer) {
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		h.frames.Add(1)

		env, err := protocol.Decode(data)
		if err != nil {
			h.decodeErrors.Add(1)
			h.logger.Warn("discarding malformed frame", "peer", p.info.ID, "error", err)
			continue
		}

		name := h.nameOf(p)
		if name == "" {
			if env.Type != protocol.TagIdentify {
				h.unidentified.Add(1)
				h.logger.Warn("frame before identification", "peer", p.info.ID, "type", env.Type)
				continue
			}
			if err := h.identify(p, env); err != nil {
				h.logger.Warn("bad identification", "peer", p.info.ID, "error", err)
			}
			continue
		}

		switch env.Type {
		case protocol.TagIdentify:
			h.logger.Debug("ignoring repeated identification", "name", name)
			continue
		case protocol.TagLog:
			h.logger.Info("peer log", "name", name, "payload", string(env.Payload))
		case protocol.TagError:
			h.logger.Error("peer error", "name", name, "payload", string(env.Payload))
		}

		h.broadcast(p, data)
	}
}

func (h *Hub) identify(p *peer, env protocol.Envelope) error {
	var name string
	if err := env.Unmarshal(&name); err != nil || name == "" {
		return errNameNotString
	}

	h.mu.Lock()
	p.info.Name = name
	h.mu.Unlock()

	h.logger.Info("peer identified", "peer", p.info.ID, "name", name)
	return nil
}

func (h *Hub) nameOf(p *peer) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return p.info.Name
}

// broadcast relays data to every identified peer except from.
func (h *Hub) broadcast(from *peer, data []byte) {
	h.mu.RLock()
	targets := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		if p != from && p.info.Name != "" {
			targets = append(targets, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range targets {
		if err := p.send(data, h.writeTimeout); err != nil {
			h.logger.Debug("relay failed", "peer", p.info.ID, "error", err)
			continue
		}
		h.relayed.Add(1)
	}
}
