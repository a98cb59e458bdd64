// Package eventbridge relays a Playback Controller's typed observer events
// (state changes, time updates, errors) to websocket subscribers. It is an
// optional embedder convenience, not part of the core playback contract
// (spec.md §6). The hub/register/unregister/broadcast shape follows the
// register-channel fan-out pattern common to long-lived connection
// managers; there is no websocket precedent to adapt here, so this is new
// infrastructure wired directly to the Controller's own observer.List
// subscriptions rather than a polling loop.
package eventbridge

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mediacore/playback/internal/controller"
	"github.com/mediacore/playback/internal/mediatime"
)

type message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans out controller events to every connected websocket client.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	log        zerolog.Logger
}

// NewHub constructs a Hub and subscribes it to c's StateChange, TimeUpdate,
// and ErrorChange observer lists. Call Run in its own goroutine to start
// fanning out events, and Close when the embedder shuts down.
func NewHub(c *controller.Controller, log zerolog.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		log:        log,
	}

	c.StateChange.Subscribe(func(ev controller.StateChange) { h.publish("stateChange", ev) })
	c.TimeUpdate.Subscribe(func(pos mediatime.Seconds) { h.publish("timeUpdate", pos) })
	c.ErrorChange.Subscribe(func(ev controller.ErrorEvent) { h.publish("error", ev) })

	return h
}

// Run drains the hub's internal channels until Close is called. Intended
// to run on its own goroutine for the Hub's lifetime.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for c := range h.clients {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(2*time.Second))
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
		}
	}
}

// Close stops Run and disconnects every client.
func (h *Hub) Close() { close(h.done) }

func (h *Hub) publish(kind string, data any) {
	payload, err := json.Marshal(message{Type: kind, Data: data})
	if err != nil {
		h.log.Error().Err(err).Str("kind", kind).Msg("eventbridge: marshal failed")
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.log.Warn().Str("kind", kind).Msg("eventbridge: broadcast channel full, dropping event")
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades r to a websocket connection and registers it with h.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("eventbridge: upgrade failed")
		return
	}
	c := &client{id: uuid.New().String(), hub: h, conn: conn, send: make(chan []byte, 16)}
	h.log.Debug().Str("client", c.id).Msg("eventbridge: client connected")
	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
		c.hub.log.Debug().Str("client", c.id).Msg("eventbridge: client disconnected")
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
