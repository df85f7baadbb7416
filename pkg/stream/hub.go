// Package stream pushes score updates and settlement events to WebSocket
// clients. The hub owns all client registration; handlers never touch
// connections directly.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mykcryptodev/football-onchain/pkg/squares"
)

// EventType classifies a pushed event.
type EventType string

const (
	EventScoreUpdate EventType = "score_update"
	EventSettlement  EventType = "settlement"
	EventRefresh     EventType = "refresh"
	EventStatus      EventType = "status"
	EventHeartbeat   EventType = "heartbeat"
)

// Event is the wire envelope for every pushed message.
type Event struct {
	Type    EventType   `json:"type"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload,omitempty"`
}

// SettlementPayload carries one contest's recomputed winners.
type SettlementPayload struct {
	ContestID int64                     `json:"contestId"`
	Winners   []squares.WinningBoxEntry `json:"winners"`
}

// RefreshPayload announces a forced contest refresh.
type RefreshPayload struct {
	ContestID int64  `json:"contestId"`
	RefreshID string `json:"refreshId"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

// ClientGauge tracks the connected-client count. Prometheus gauges satisfy
// it.
type ClientGauge interface {
	Inc()
	Dec()
}

type nopGauge struct{}

func (nopGauge) Inc() {}
func (nopGauge) Dec() {}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to all connected clients. Slow clients get dropped
// rather than backpressuring the broadcast path.
type Hub struct {
	log      zerolog.Logger
	gauge    ClientGauge
	upgrader websocket.Upgrader

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	clients    map[*client]bool
}

// NewHub creates a hub. gauge may be nil.
func NewHub(log zerolog.Logger, gauge ClientGauge) *Hub {
	if gauge == nil {
		gauge = nopGauge{}
	}
	return &Hub{
		log:   log.With().Str("component", "stream").Logger(),
		gauge: gauge,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The boundary is a public read surface; origin checks are
			// left to the deployment's proxy layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[*client]bool),
	}
}

// Run processes registrations and broadcasts until the context is
// canceled. Must run in its own goroutine before ServeHTTP is reachable.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info().Msg("stream hub started")
	defer h.log.Info().Msg("stream hub stopped")

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			h.gauge.Inc()
			h.log.Debug().Str("client_id", c.id).Int("clients", len(h.clients)).Msg("client connected")
		case c := <-h.unregister:
			if h.clients[c] {
				h.drop(c)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Send buffer full: the client is too slow to keep.
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.gauge.Dec()
	h.log.Debug().Str("client_id", c.id).Int("clients", len(h.clients)).Msg("client disconnected")
}

// Broadcast pushes an event to every connected client.
func (h *Hub) Broadcast(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(ev.Type)).Msg("marshal event")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn().Str("event", string(ev.Type)).Msg("broadcast buffer full, event dropped")
	}
}

// BroadcastScore pushes a score snapshot.
func (h *Hub) BroadcastScore(gs *squares.GameScore) {
	h.Broadcast(Event{Type: EventScoreUpdate, Payload: gs})
}

// BroadcastSettlement pushes a contest's recomputed winners.
func (h *Hub) BroadcastSettlement(contestID int64, winners []squares.WinningBoxEntry) {
	h.Broadcast(Event{Type: EventSettlement, Payload: SettlementPayload{ContestID: contestID, Winners: winners}})
}

// BroadcastRefresh announces a forced refresh with its correlation id.
func (h *Hub) BroadcastRefresh(contestID int64, refreshID string) {
	h.Broadcast(Event{Type: EventRefresh, Payload: RefreshPayload{ContestID: contestID, RefreshID: refreshID}})
}

// ServeHTTP upgrades the request and attaches the client to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

// readPump discards client messages; the stream is one-way. It exists to
// process control frames and notice the peer going away.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
