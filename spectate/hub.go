// Package spectate streams battle frames to browsers over websockets.
package spectate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/bandits/store"
)

const writeWait = 5 * time.Second

var ErrHubStopped = errors.New("hub stopped")

// Frame is one board state as sent to spectators.
type Frame struct {
	Seq int `json:"seq"`
	store.RoundRow
}

// FramesFromTrace numbers trace rows in order.
func FramesFromTrace(rows []store.RoundRow) []Frame {
	frames := make([]Frame, len(rows))
	for i, r := range rows {
		frames[i] = Frame{Seq: i, RoundRow: r}
	}
	return frames
}

// Hub fans frames out to every connected client. A single goroutine (Run)
// owns the client set and is the only writer to each connection.
type Hub struct {
	log *slog.Logger

	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}

	// last frame sent, replayed to clients as they join.
	last      []byte
	connected atomic.Int32
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:        log,
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for conn := range h.clients {
			conn.Close()
		}
		h.clients = nil
		h.connected.Store(0)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.clients[conn] = struct{}{}
			h.connected.Store(int32(len(h.clients)))
			if h.last != nil {
				h.send(conn, h.last)
			}

		case conn := <-h.unregister:
			h.drop(conn)

		case msg := <-h.broadcast:
			h.last = msg
			for conn := range h.clients {
				h.send(conn, msg)
			}
		}
	}
}

func (h *Hub) send(conn *websocket.Conn, msg []byte) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		h.log.Debug("spectator write failed", "remote", conn.RemoteAddr().String(), "err", err)
		h.drop(conn)
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	if _, ok := h.clients[conn]; !ok {
		return
	}
	delete(h.clients, conn)
	h.connected.Store(int32(len(h.clients)))
	conn.Close()
}

// Register adds conn to the hub. It returns false once the hub has stopped.
func (h *Hub) Register(conn *websocket.Conn) bool {
	select {
	case h.register <- conn:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast queues f for every client.
func (h *Hub) Broadcast(ctx context.Context, f Frame) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	msg, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	select {
	case h.broadcast <- msg:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clients reports how many spectators are connected.
func (h *Hub) Clients() int { return int(h.connected.Load()) }
