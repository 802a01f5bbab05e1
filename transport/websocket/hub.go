// Package websocket streams per-map game state to spectators. Clients
// subscribe to a map id and receive the public session state after every
// applied tick.
package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Spectator stream exposes only what /game/state already serves.
		return true
	},
}

// Message is one state update pushed to spectators.
type Message struct {
	MapID string      `json:"mapId"`
	State interface{} `json:"state"`
}

// Client is one connected spectator.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	mapID string
}

// Hub maintains the set of active clients and fans state updates out to
// them. Broadcast never blocks the caller: the game strand publishes through
// a buffered channel and updates are dropped when the hub falls behind.
type Hub struct {
	logger *zap.SugaredLogger

	// Registered clients by map id.
	maps map[string]map[*Client]bool

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
}

// NewHub creates a hub; call Run on its own goroutine.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger.Sugar(),
		maps:       make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// ServeWS upgrades the request and subscribes the client to a map.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, mapID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, 256),
		mapID: mapID,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// Broadcast queues a state update for every client watching the map. It
// never blocks; when the hub's queue is full the update is dropped.
func (h *Hub) Broadcast(mapID string, state interface{}) {
	select {
	case h.broadcast <- &Message{MapID: mapID, State: state}:
	default:
	}
}

func (h *Hub) registerClient(client *Client) {
	if h.maps[client.mapID] == nil {
		h.maps[client.mapID] = make(map[*Client]bool)
	}
	h.maps[client.mapID][client] = true

	h.logger.Infow("spectator connected", "map", client.mapID, "total", len(h.maps[client.mapID]))
}

func (h *Hub) unregisterClient(client *Client) {
	clients, ok := h.maps[client.mapID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.maps, client.mapID)
	}

	h.logger.Infow("spectator disconnected", "map", client.mapID, "remaining", len(clients))
}

func (h *Hub) broadcastMessage(message *Message) {
	clients, ok := h.maps[message.MapID]
	if !ok {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Warnw("cannot marshal state update", "error", err)
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
		default:
			// Slow client; drop it rather than stall the stream.
			h.unregisterClient(client)
		}
	}
}

// readPump drains the connection so pongs are processed; incoming client
// messages are ignored.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pumps queued updates to the connection and keeps it alive with
// pings.
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
