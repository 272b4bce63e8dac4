package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
	"github.com/xiaot623/gogo/coordinator/internal/metrics"
)

// ErrBufferFull is returned when a connection's send buffer is full.
var ErrBufferFull = errors.New("send buffer full")

var errStopped = errors.New("hub stopped")

// Subscription selects the events a connection receives.
type Subscription struct {
	Reviewer   string
	SubjectIDs map[string]bool
	EventTypes map[domain.EventType]bool
}

// NewSubscription builds a subscription from a client message.
func NewSubscription(msg SubscribeMessage) Subscription {
	sub := Subscription{Reviewer: msg.Reviewer}
	if len(msg.SubjectIDs) > 0 {
		sub.SubjectIDs = make(map[string]bool, len(msg.SubjectIDs))
		for _, id := range msg.SubjectIDs {
			sub.SubjectIDs[id] = true
		}
	}
	if len(msg.EventTypes) > 0 {
		sub.EventTypes = make(map[domain.EventType]bool, len(msg.EventTypes))
		for _, t := range msg.EventTypes {
			sub.EventTypes[t] = true
		}
	}
	return sub
}

// Matches reports whether event passes every non-empty filter. A reviewer
// filter matches events addressed to that reviewer and broadcast events
// without recipients.
func (s Subscription) Matches(event domain.Event) bool {
	if s.SubjectIDs != nil && !s.SubjectIDs[event.SubjectID] {
		return false
	}
	if s.EventTypes != nil && !s.EventTypes[event.Type] {
		return false
	}
	if s.Reviewer != "" && len(event.Recipients) > 0 {
		for _, r := range event.Recipients {
			if r == s.Reviewer {
				return true
			}
		}
		return false
	}
	return true
}

// Connection represents a single feed connection.
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	mu         sync.Mutex
	subMu      sync.RWMutex
	sub        Subscription
	subscribed bool
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

func (c *Connection) subscription() (Subscription, bool) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.sub, c.subscribed
}

// Hub fans coordinator events out to subscribed connections. It implements
// notify.Sink.
type Hub struct {
	connections map[string]*Connection

	unregister chan *Connection
	broadcast  chan domain.Event
	done       chan struct{}

	sendBuffer int
	log        zerolog.Logger
	mu         sync.RWMutex
	stopped    bool
}

// NewHub creates a new Hub. sendBuffer bounds each connection's queue.
func NewHub(sendBuffer int, log zerolog.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Hub{
		connections: make(map[string]*Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan domain.Event, 256),
		done:        make(chan struct{}),
		sendBuffer:  sendBuffer,
		log:         log.With().Str("component", "ws_hub").Logger(),
	}
}

// Run starts the hub's main loop and returns when ctx is done. Run must be
// called at most once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.stopped = true
			for id, conn := range h.connections {
				delete(h.connections, id)
				close(conn.Send)
			}
			h.mu.Unlock()
			h.reportConnections()
			return

		case conn := <-h.unregister:
			h.remove(conn)

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) deliver(event domain.Event) {
	data, err := json.Marshal(EventMessage{
		BaseMessage: BaseMessage{Type: TypeEvent, Ts: time.Now().UnixMilli()},
		Event:       event,
	})
	if err != nil {
		h.log.Error().Err(err).Str("event_id", event.EventID).Msg("failed to encode event")
		return
	}

	h.mu.RLock()
	var slow []*Connection
	for _, conn := range h.connections {
		sub, ok := conn.subscription()
		if !ok || !sub.Matches(event) {
			continue
		}
		select {
		case conn.Send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range slow {
		h.log.Warn().Str("connection_id", conn.ID).Msg("connection buffer full, closing")
		h.remove(conn)
	}
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	_, ok := h.connections[conn.ID]
	if ok {
		delete(h.connections, conn.ID)
		close(conn.Send)
	}
	h.mu.Unlock()
	if ok {
		h.log.Debug().Str("connection_id", conn.ID).Msg("connection unregistered")
		h.reportConnections()
	}
}

func (h *Hub) reportConnections() {
	metrics.SetFeedConnections(h.ConnectionCount())
}

// NewConnection wraps a websocket; it is not registered yet.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, h.sendBuffer),
	}
}

// Register registers a connection with the hub. It returns false once the
// hub has stopped.
func (h *Hub) Register(conn *Connection) bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return false
	}
	h.connections[conn.ID] = conn
	h.mu.Unlock()

	h.log.Debug().Str("connection_id", conn.ID).Msg("connection registered")
	h.reportConnections()
	return true
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Subscribe replaces the connection's filter and starts delivery to it.
func (h *Hub) Subscribe(conn *Connection, sub Subscription) {
	conn.subMu.Lock()
	conn.sub = sub
	conn.subscribed = true
	conn.subMu.Unlock()
}

// SendJSONToConnection queues a JSON message for one connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return nil
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Name implements notify.Sink.
func (h *Hub) Name() string { return "websocket" }

// Publish implements notify.Sink by queueing the event for fan-out.
func (h *Hub) Publish(ctx context.Context, event domain.Event) error {
	select {
	case <-h.done:
		return errStopped
	default:
	}
	select {
	case h.broadcast <- event:
		return nil
	case <-h.done:
		return errStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
