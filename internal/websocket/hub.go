// Package websocket pushes invoice events to the browsers of the
// organization that owns them.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"einvoice/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event names sent to clients.
const (
	EventInvoiceCreated      = "invoice.created"
	EventInvoicesBulkCreated = "invoice.bulk_created"
	EventInvoiceUpdated      = "invoice.updated"
	EventInvoiceDeleted      = "invoice.deleted"
	EventInvoiceValidated    = "invoice.validated"
	EventInvoiceSubmitted    = "invoice.submitted"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by CORS and the auth cookie.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the frame written to clients.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type envelope struct {
	orgID   uuid.UUID
	payload []byte
}

// Client represents a single connected WebSocket client
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	orgID uuid.UUID
}

// Hub maintains the set of active clients grouped by organization.
type Hub struct {
	clients    map[uuid.UUID]map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run dispatches hub events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
				}
			}
			h.clients = make(map[uuid.UUID]map[*Client]bool)
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.orgID] == nil {
				h.clients[client.orgID] = make(map[*Client]bool)
			}
			h.clients[client.orgID][client] = true
			h.mu.Unlock()
			zap.L().Debug("websocket client connected", zap.String("org_id", client.orgID.String()))
		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.orgID] {
				select {
				case client.send <- msg.payload:
				default:
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	set := h.clients[client.orgID]
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.clients, client.orgID)
	}
	zap.L().Debug("websocket client disconnected", zap.String("org_id", client.orgID.String()))
}

// Publish queues an event for every client of orgID. It never blocks; when
// the queue is full the event is dropped.
func (h *Hub) Publish(orgID uuid.UUID, event string, data any) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		zap.L().Warn("websocket event not encodable", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- envelope{orgID: orgID, payload: payload}:
	default:
		zap.L().Warn("websocket queue full, event dropped", zap.String("event", event))
	}
}

// ClientCount returns the number of connected clients for orgID.
func (h *Hub) ClientCount(orgID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[orgID])
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.L().Warn("websocket read failed", zap.Error(err))
			}
			return
		}
	}
}

// ServeWs upgrades authenticated requests. Browsers cannot set headers on a
// websocket handshake, so the token may also come from the "token" query param.
func ServeWs(hub *Hub, auth *middleware.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			var err error
			if tokenString, err = auth.TokenFromRequest(c); err != nil {
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}
		}

		claims, err := auth.Parse(tokenString)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		orgID, err := uuid.Parse(claims.OrgID)
		if err != nil {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			zap.L().Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256), orgID: orgID}
		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}
