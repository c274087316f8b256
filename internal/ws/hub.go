package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"gowa-gateway/internal/model"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var ErrNoChannel = errors.New("no websocket channel for session")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Event is the frame pushed to websocket listeners.
type Event struct {
	SessionID string          `json:"sessionId"`
	DataType  model.EventType `json:"dataType"`
	Data      any             `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client is one websocket connection subscribed to a session channel.
type Client struct {
	hub       *Hub
	sessionID string
	conn      *websocket.Conn
	send      chan Event
}

// Hub keeps one channel per session. A channel exists between Init and
// Terminate; connections can only join an existing channel.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}
	log      zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		channels: make(map[string]map[*Client]struct{}),
		log:      log.With().Str("component", "ws").Logger(),
	}
}

// Init opens the channel for sessionID. Calling it again keeps existing listeners.
func (h *Hub) Init(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.channels[sessionID]; !ok {
		h.channels[sessionID] = make(map[*Client]struct{})
	}
}

// Terminate closes every connection on the channel and removes it.
func (h *Hub) Terminate(sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.channels[sessionID]
	if !ok {
		return nil
	}
	for c := range clients {
		close(c.send)
	}
	delete(h.channels, sessionID)
	h.log.Debug().Str("session_id", sessionID).Int("clients", len(clients)).Msg("Channel terminated")
	return nil
}

func (h *Hub) HasChannel(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.channels[sessionID]
	return ok
}

// Clients returns the number of connections on a session channel.
func (h *Hub) Clients(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[sessionID])
}

func (h *Hub) NewClient(sessionID string, conn *websocket.Conn) *Client {
	return &Client{hub: h, sessionID: sessionID, conn: conn, send: make(chan Event, sendBuffer)}
}

// Register joins c to its session channel.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.channels[c.sessionID]
	if !ok {
		return ErrNoChannel
	}
	clients[c] = struct{}{}
	return nil
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.channels[c.sessionID]; ok {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
		}
	}
}

// Deliver broadcasts to every connection on the session channel. It never
// blocks: a connection whose buffer is full is dropped.
func (h *Hub) Deliver(sessionID string, eventType model.EventType, payload any) {
	evt := Event{SessionID: sessionID, DataType: eventType, Data: payload, Timestamp: time.Now().UTC()}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.channels[sessionID] {
		select {
		case c.send <- evt:
		default:
			h.log.Warn().Str("session_id", sessionID).Msg("Websocket client too slow, dropping")
			delete(h.channels[sessionID], c)
			close(c.send)
		}
	}
}

// WritePump sends queued events to the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				c.hub.log.Error().Err(err).Msg("Failed to marshal websocket event")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.hub.log.Debug().Err(err).Msg("Websocket write failed")
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

// ReadPump drains the connection until it closes. Listeners are receive-only.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug().Err(err).Str("session_id", c.sessionID).Msg("Websocket read error")
			}
			return
		}
	}
}
