package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub accepts websocket clients and forwards their scene updates to a
// bounded channel the render thread drains. It is the only component
// that may block on the network; the engine never does.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	// Scenes receives raw scene documents from clients. Bounded; the
	// reader drops updates with an error envelope when the render
	// thread falls behind.
	scenes chan Update

	mu      sync.Mutex
	clients map[*client]struct{}
}

// Update is one scene document with its reply route.
type Update struct {
	Raw       []byte
	RequestID string

	// Reply sends an envelope back to the originating client only.
	Reply func(*Envelope)
}

type client struct {
	conn *websocket.Conn
	out  chan *Envelope
	once sync.Once
}

func (c *client) shutdown() {
	c.once.Do(func() {
		close(c.out)
		_ = c.conn.Close()
	})
}

// NewHub creates a hub with the given scene-queue depth.
func NewHub(log *slog.Logger, depth int) *Hub {
	if depth <= 0 {
		depth = 16
	}
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		scenes:  make(chan Update, depth),
		clients: make(map[*client]struct{}),
	}
}

// Scenes returns the bounded channel of incoming scene updates.
func (h *Hub) Scenes() <-chan Update { return h.scenes }

// ServeHTTP upgrades one connection and pumps it until close.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("transport: upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, out: make(chan *Envelope, 8)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

// Broadcast sends an envelope to every connected client, dropping it for
// clients whose write queue is full.
func (h *Hub) Broadcast(env *Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.out <- env:
		default:
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer h.drop(c)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := DecodeEnvelope(raw)
		if err != nil {
			h.send(c, ErrorEnvelope("", CodeParseError, "", err.Error()))
			continue
		}
		switch env.Type {
		case TypePing:
			pong, _ := NewEnvelope(TypePong, nil)
			pong.RequestID = env.RequestID
			h.send(c, pong)

		case TypeSceneUpdate:
			update := Update{
				Raw:       env.Payload,
				RequestID: env.RequestID,
				Reply:     func(e *Envelope) { h.send(c, e) },
			}
			select {
			case h.scenes <- update:
			default:
				h.send(c, ErrorEnvelope(env.RequestID, CodeValidationError, "",
					"scene queue full, update dropped"))
			}

		case TypeSceneRequest:
			// Answered by the host via Broadcast once the current
			// plan description is assembled.
			h.log.Debug("transport: scene request", "requestId", env.RequestID)

		default:
			h.send(c, ErrorEnvelope(env.RequestID, CodeParseError, "",
				fmt.Sprintf("unknown message type %q", env.Type)))
		}
	}
}

func (h *Hub) writePump(c *client) {
	for env := range c.out {
		raw, err := json.Marshal(env)
		if err != nil {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			return
		}
	}
}

func (h *Hub) send(c *client, env *Envelope) {
	select {
	case c.out <- env:
	default:
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.shutdown()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = map[*client]struct{}{}
	h.mu.Unlock()
	for _, c := range clients {
		c.shutdown()
	}
}
