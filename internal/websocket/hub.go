// Package websocket pushes template store changes to connected browsers.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/protoplast/internal/logging"
	"github.com/conneroisu/protoplast/internal/types"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Hub tracks connected clients and broadcasts update messages to all of
// them. A single goroutine owns registration and fan-out; each client has
// its own writer goroutine.
type Hub struct {
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex

	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn

	origins []string
	logger  logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	done         chan struct{}
}

// NewHub creates a hub and starts its loop. origins are host patterns
// accepted on the upgrade request; none means same-origin only.
func NewHub(origins []string, logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client, 32),
		unregister: make(chan *websocket.Conn, 32),
		origins:    origins,
		logger:     logger.WithComponent("websocket"),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.origins,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		// Accept has already written the response
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	client := &Client{
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		remote:    r.RemoteAddr,
		connected: time.Now(),
	}

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close(websocket.StatusServiceRestart, "server shutting down")
		return
	}

	go h.writeToClient(client)

	// Clients only listen; CloseRead handles control frames and reports
	// when the peer goes away.
	<-conn.CloseRead(h.ctx).Done()
	h.leave(conn)
}

// Broadcast queues message for every connected client. It drops the
// message when the queue is full or the hub is shut down.
func (h *Hub) Broadcast(message UpdateMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error(h.ctx, err, "Failed to marshal broadcast message")
		return
	}

	select {
	case <-h.ctx.Done():
		return
	default:
	}

	select {
	case h.broadcast <- data:
	case <-h.ctx.Done():
	default:
		h.logger.Warn(h.ctx, nil, "Broadcast channel full, dropping message", "template", message.Template)
	}
}

// Forward broadcasts every event received from events until it is closed
// or ctx is done.
func (h *Hub) Forward(ctx context.Context, events <-chan types.TemplateEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(MessageFromEvent(event))
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// Shutdown closes every connection and stops the hub loop.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.cancel()

		h.clientsMutex.Lock()
		for conn, client := range h.clients {
			close(client.send)
			conn.Close(websocket.StatusGoingAway, "server shutdown")
		}
		h.clients = make(map[*websocket.Conn]*Client)
		h.clientsMutex.Unlock()
	})

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clientsMutex.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.clientsMutex.Unlock()
			h.logger.Debug(h.ctx, "WebSocket client connected", "remote", client.remote, "clients", count)

		case conn := <-h.unregister:
			h.remove(conn)

		case message := <-h.broadcast:
			h.fanOut(message)

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) leave(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.ctx.Done():
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.clientsMutex.Lock()
	client, exists := h.clients[conn]
	if exists {
		delete(h.clients, conn)
		close(client.send)
	}
	count := len(h.clients)
	h.clientsMutex.Unlock()

	if exists {
		conn.Close(websocket.StatusNormalClosure, "")
		h.logger.Debug(h.ctx, "WebSocket client disconnected", "remote", client.remote, "clients", count)
	}
}

func (h *Hub) fanOut(message []byte) {
	h.clientsMutex.RLock()
	var slow []*websocket.Conn
	for conn, client := range h.clients {
		select {
		case client.send <- message:
		default:
			slow = append(slow, conn)
		}
	}
	h.clientsMutex.RUnlock()

	for _, conn := range slow {
		h.remove(conn)
	}
}

func (h *Hub) writeToClient(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				h.leave(client.conn)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				h.leave(client.conn)
				return
			}

		case <-h.ctx.Done():
			return
		}
	}
}
