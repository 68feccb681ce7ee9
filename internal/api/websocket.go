package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/VerseExplorer/internal/logging"
	"github.com/FocuswithJustin/VerseExplorer/internal/session"
)

// WebSocket message types.
const (
	MessageWelcome      = "welcome"
	MessageSearch       = "search"
	MessageSearchResult = "search_result"
	MessageNotesChanged = "notes_changed"
	MessagePing         = "ping"
	MessagePong         = "pong"
	MessageError        = "error"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// ClientMessage is a request sent by a WebSocket client.
type ClientMessage struct {
	Type    string         `json:"type"`
	ID      string         `json:"id,omitempty"`
	Request *SearchRequest `json:"request,omitempty"`
}

// ServerMessage is a message sent to WebSocket clients.
type ServerMessage struct {
	Type      string      `json:"type"`
	ID        string      `json:"id,omitempty"` // echoes ClientMessage.ID
	ClientID  string      `json:"client_id,omitempty"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
}

type searchFunc func(ctx context.Context, req SearchRequest) (*SearchResponse, error)

// Client is one WebSocket connection.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *tokenBucket
}

// Hub tracks connected clients, answers their searches and broadcasts
// notes changes.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	search  searchFunc
	logger  *slog.Logger
	onCount func(int)
}

// NewHub creates a hub that answers search messages with search.
func NewHub(search searchFunc, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		search:     search,
		logger:     logger,
		onCount:    func(int) {},
	}
}

// Run handles registration and broadcasting until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.mu.Unlock()
		h.onCount(0)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.onCount(n)
			logging.WebSocketEvent("client_connected", n, "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.onCount(n)
			logging.WebSocketEvent("client_disconnected", n, "client_id", client.id)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client: drop it rather than block the hub.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends msg to every connected client.
func (h *Hub) Broadcast(msg ServerMessage) {
	data, err := encodeMessage(msg)
	if err != nil {
		h.logger.Error("failed to marshal websocket message", "type", msg.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "type", msg.Type)
	}
}

// BroadcastNotesChanged tells every client about a completed notes write.
func (h *Hub) BroadcastNotesChanged(c session.Change) {
	h.Broadcast(ServerMessage{Type: MessageNotesChanged, Data: c})
}

// sendTo queues msg for one client if it is still registered.
func (h *Hub) sendTo(c *Client, msg ServerMessage) {
	data, err := encodeMessage(msg)
	if err != nil {
		h.logger.Error("failed to marshal websocket message", "type", msg.Type, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		h.logger.Warn("client send buffer full, dropping message", "client_id", c.id, "type", msg.Type)
	}
}

func encodeMessage(msg ServerMessage) ([]byte, error) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return json.Marshal(msg)
}

// isOriginAllowed checks origin against the allowed list. An empty list
// allows every origin; "*" and "*.example.com" patterns are supported.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if len(allowedOrigins) == 0 {
		return true
	}
	if origin == "" {
		return false
	}
	for _, allowed := range allowedOrigins {
		switch {
		case allowed == "*", origin == allowed:
			return true
		case strings.HasPrefix(allowed, "*."):
			if strings.HasSuffix(origin, allowed[1:]) {
				return true
			}
		}
	}
	return false
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if !isOriginAllowed(origin, s.cfg.AllowedOrigins) {
				logging.WarnContext(r.Context(), "websocket origin rejected", "origin", origin)
				return false
			}
			return true
		},
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logging.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(s.cfg.MaxMessageSize)

	rate := float64(s.cfg.MaxMessageRate)
	client := &Client{
		id:      uuid.NewString(),
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: newTokenBucket(rate, rate),
	}

	if welcome, err := encodeMessage(ServerMessage{Type: MessageWelcome, ClientID: client.id}); err == nil {
		client.send <- welcome
	}

	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(logging.GetRequestID(r.Context()))
}

// readPump reads client messages until the connection fails or the
// client exceeds its message rate.
func (c *Client) readPump(requestID string) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx := logging.WithRequestID(context.Background(), requestID)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket unexpected close", "client_id", c.id, "error", err)
			}
			return
		}

		if !c.limiter.allow() {
			c.hub.logger.Warn("websocket message rate exceeded", "client_id", c.id)
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Rate limit exceeded"),
				time.Now().Add(writeWait))
			return
		}

		c.handle(ctx, data)
	}
}

func (c *Client) handle(ctx context.Context, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.sendTo(c, ServerMessage{
			Type:  MessageError,
			Error: &APIError{Code: "INVALID_INPUT", Message: "messages must be JSON objects"},
		})
		return
	}

	switch msg.Type {
	case MessagePing:
		c.hub.sendTo(c, ServerMessage{Type: MessagePong, ID: msg.ID})

	case MessageSearch:
		if msg.Request == nil {
			c.hub.sendTo(c, ServerMessage{
				Type:  MessageError,
				ID:    msg.ID,
				Error: &APIError{Code: "INVALID_INPUT", Message: "search messages need a request"},
			})
			return
		}
		resp, err := c.hub.search(ctx, *msg.Request)
		if err != nil {
			_, code := errorStatus(err)
			c.hub.sendTo(c, ServerMessage{
				Type:  MessageError,
				ID:    msg.ID,
				Error: &APIError{Code: code, Message: err.Error()},
			})
			return
		}
		c.hub.sendTo(c, ServerMessage{Type: MessageSearchResult, ID: msg.ID, Data: resp})

	default:
		c.hub.sendTo(c, ServerMessage{
			Type:  MessageError,
			ID:    msg.ID,
			Error: &APIError{Code: "INVALID_INPUT", Message: "unknown message type " + msg.Type},
		})
	}
}

// writePump writes queued messages, one per frame, and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
