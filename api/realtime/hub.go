package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/truck-ledger-api/config"
	"github.com/linesmerrill/truck-ledger-api/ledger"
	"github.com/linesmerrill/truck-ledger-api/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// TripTotalChangedType is the message type pushed after a trip total moves
const TripTotalChangedType = "trip.total_changed"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// connections are authenticated by bearer token, not by origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the envelope of everything written to a client
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// TripTotalUpdate is the payload of a trip.total_changed message
type TripTotalUpdate struct {
	TripID    string  `json:"tripId"`
	TotalCost float64 `json:"totalCost"`
}

// Client is one websocket connection of an owner
type Client struct {
	OwnerID string
	Conn    *websocket.Conn
	Send    chan []byte
	hub     *Hub
}

// Hub tracks connected clients per owner and pushes trip total updates to them
type Hub struct {
	mu         sync.Mutex
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates a new websocket hub. Run must be started before clients connect.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves register and unregister requests until ctx is done, then drops
// every client
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.OwnerID] == nil {
				h.clients[client.OwnerID] = make(map[*Client]struct{})
			}
			h.clients[client.OwnerID][client] = struct{}{}
			h.mu.Unlock()
			zap.S().Debugw("websocket client connected", "ownerID", client.OwnerID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			zap.S().Debugw("websocket client disconnected", "ownerID", client.OwnerID)

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for _, clients := range h.clients {
				for client := range clients {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// remove drops client and closes its send channel. h.mu must be held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.OwnerID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.OwnerID)
	}
}

// BroadcastToUser sends message to every connection of ownerID. Clients that
// cannot keep up are disconnected.
func (h *Hub) BroadcastToUser(ownerID string, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients[ownerID] {
		select {
		case client.Send <- message:
		default:
			zap.S().Warnw("dropping slow websocket client", "ownerID", ownerID)
			h.remove(client)
		}
	}
}

// TripTotalChanged pushes the new total of trip to its owner
func (h *Hub) TripTotalChanged(ownerID string, trip models.Trip) {
	data, err := json.Marshal(Message{
		Type: TripTotalChangedType,
		Data: TripTotalUpdate{TripID: trip.ID.Hex(), TotalCost: trip.TotalCost},
	})
	if err != nil {
		zap.S().Errorw("failed to marshal trip total update", "tripID", trip.ID.Hex(), "error", err)
		return
	}
	h.BroadcastToUser(ownerID, data)
}

// ConnectedClients returns the number of open connections
func (h *Hub) ConnectedClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}

// ServeWS upgrades an authenticated request and subscribes it to its owner's
// trip updates
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ledger.OwnerFromContext(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, ledger.ErrNotAuthenticated)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the error response
		zap.S().Debugw("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		OwnerID: ownerID,
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		hub:     h,
	}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only watches for the connection closing; clients do not send anything
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.S().Warnw("websocket read error", "ownerID", c.OwnerID, "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				zap.S().Warnw("websocket write error", "ownerID", c.OwnerID, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
