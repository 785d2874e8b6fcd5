// Package feed streams scan events to connected business dashboards over
// websockets.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stampd-app/stampd/internal/app/domain/program"
	"github.com/stampd-app/stampd/pkg/logger"
)

// Event is one scan result as pushed to dashboard subscribers.
type Event struct {
	BusinessID string              `json:"business_id"`
	CustomerID string              `json:"customer_id"`
	Outcome    program.OutcomeKind `json:"outcome"`
	NewCount   int                 `json:"new_count,omitempty"`
	At         time.Time           `json:"at"`
}

const (
	writeWait     = 5 * time.Second
	clientBacklog = 16
)

// Broadcaster fans scan events out to websocket subscribers, keyed by
// business. Publishing never blocks the redemption path: slow consumers
// are dropped.
type Broadcaster struct {
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// NewBroadcaster creates an idle broadcaster.
func NewBroadcaster(log *logger.Logger) *Broadcaster {
	if log == nil {
		log = logger.NewDefault("feed")
	}
	return &Broadcaster{
		log:     log,
		clients: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Name implements system.Service.
func (b *Broadcaster) Name() string { return "feed" }

// Start implements system.Service.
func (b *Broadcaster) Start(_ context.Context) error { return nil }

// Stop closes all subscriber connections.
func (b *Broadcaster) Stop(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for _, clients := range b.clients {
		for c := range clients {
			close(c.send)
		}
	}
	b.clients = make(map[string]map[*client]struct{})
	return nil
}

// Publish delivers an event to every subscriber of the event's business.
func (b *Broadcaster) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for c := range b.clients[event.BusinessID] {
		select {
		case c.send <- event:
		default:
			// Backlogged consumer; it will catch up from the next event
			// or get disconnected by its own write failures.
			b.log.WithField("business_id", event.BusinessID).Debug("dropping feed event for slow subscriber")
		}
	}
}

// Subscribers reports the current connection count for a business.
func (b *Broadcaster) Subscribers(businessID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[businessID])
}

// ServeWS upgrades the request and streams events for businessID until the
// client disconnects.
func (b *Broadcaster) ServeWS(w http.ResponseWriter, r *http.Request, businessID string) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan Event, clientBacklog)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		conn.Close()
		return
	}
	if b.clients[businessID] == nil {
		b.clients[businessID] = make(map[*client]struct{})
	}
	b.clients[businessID][c] = struct{}{}
	b.mu.Unlock()

	go b.writeLoop(businessID, c)
	b.readLoop(businessID, c)
}

func (b *Broadcaster) writeLoop(businessID string, c *client) {
	for event := range c.send {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			break
		}
	}
	c.conn.Close()
}

// readLoop discards inbound frames; it exists to detect disconnects.
func (b *Broadcaster) readLoop(businessID string, c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}

	b.mu.Lock()
	if clients, ok := b.clients[businessID]; ok {
		if _, present := clients[c]; present {
			delete(clients, c)
			close(c.send)
		}
		if len(clients) == 0 {
			delete(b.clients, businessID)
		}
	}
	b.mu.Unlock()
}
