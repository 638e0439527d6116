package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"smartbite-api/models"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	clientBuffer   = 32
	sinkTimeout    = 5 * time.Second
)

// Sink receives every event the hub drains, e.g. a message broker
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub queues events on a bounded channel and fans them out to websocket
// clients and sinks from a single goroutine started by Run.
type Hub struct {
	events  chan Event
	sinks   []Sink
	mu      sync.RWMutex
	clients map[*client]struct{}
	dropped atomic.Int64
}

func NewHub(buffer int, sinks ...Sink) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		events:  make(chan Event, buffer),
		sinks:   sinks,
		clients: make(map[*client]struct{}),
	}
}

// Emit queues ev without blocking; when the queue is full the event is dropped.
func (h *Hub) Emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	select {
	case h.events <- ev:
	default:
		h.dropped.Add(1)
		logrus.WithField("event", ev.Name).Warn("Notification queue full, dropping event")
	}
}

// Dropped returns how many events were discarded because the queue was full
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Run drains the queue until ctx is cancelled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case ev := <-h.events:
			h.dispatch(ctx, ev)
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		logrus.WithError(err).WithField("event", ev.Name).Warn("Failed to encode event")
		return
	}

	h.mu.RLock()
	for c := range h.clients {
		if c.wants(ev) {
			c.deliver(msg)
		}
	}
	h.mu.RUnlock()

	for _, s := range h.sinks {
		h.publish(ctx, s, ev)
	}
}

func (h *Hub) publish(ctx context.Context, s Sink, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("event", ev.Name).Errorf("Sink panicked: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()
	if err := s.Publish(ctx, ev); err != nil {
		logrus.WithError(err).WithField("event", ev.Name).Warn("Failed to publish event to sink")
	}
}

// ServeWS upgrades the request and registers the connection for the given
// user. It blocks until the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uint, role models.UserRole) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{
		hub:    h,
		conn:   conn,
		userID: userID,
		role:   role,
		send:   make(chan []byte, clientBuffer),
	}
	h.register(c)
	go c.writePump()
	c.readPump()
	return nil
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	logrus.WithFields(logrus.Fields{"user_id": c.userID, "role": c.role}).Info("Websocket client registered")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	logrus.WithField("user_id", c.userID).Info("Websocket client unregistered")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uint
	role   models.UserRole
	send   chan []byte
}

func (c *client) wants(ev Event) bool {
	if c.role == models.RoleAdmin {
		return true
	}
	for _, id := range ev.UserIDs {
		if id == c.userID {
			return true
		}
	}
	for _, r := range ev.Roles {
		if r == c.role {
			return true
		}
	}
	return false
}

// deliver must be called with the hub read lock held so send is not closed
// underneath it.
func (c *client) deliver(msg []byte) {
	select {
	case c.send <- msg:
	default:
		logrus.WithField("user_id", c.userID).Warn("Websocket client too slow, dropping event")
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).WithField("user_id", c.userID).Debug("Websocket read error")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
