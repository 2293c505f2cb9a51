package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// catchupLimit is the maximum number of buffered events replayed to a
// newly-subscribed observer.
const catchupLimit = 200

// ConnectionManager bridges an EventBus to WebSocket-connected observers.
// It is only constructed when `crawlforge serve` is running; the crawl loop
// itself never depends on it. Unlike a multi-pod service there is nothing
// to LISTEN/NOTIFY on — ConnectionManager drains the bus's own subscriber
// channel in a single background goroutine per manager.
type ConnectionManager struct {
	bus *EventBus

	mu          sync.RWMutex
	connections map[string]*Connection

	ringMu sync.Mutex
	ring   []Envelope // most recent events, capped at catchupLimit

	writeTimeout time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// Connection represents a single WebSocket observer.
//
// subscribed is accessed WITHOUT a lock. This is safe because all reads and
// writes happen on the single goroutine that owns this connection
// (HandleConnection's read loop and its deferred cleanup).
type Connection struct {
	ID         string
	Conn       *websocket.Conn
	subscribed bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewConnectionManager creates a manager bridging bus to WebSocket clients.
// Call Start to begin draining the bus; call Stop to release its subscription.
func NewConnectionManager(bus *EventBus, writeTimeout time.Duration) *ConnectionManager {
	return &ConnectionManager{
		bus:          bus,
		connections:  make(map[string]*Connection),
		writeTimeout: writeTimeout,
	}
}

// Start subscribes to the bus and begins forwarding events to observers.
// Idempotent no-op if already running.
func (m *ConnectionManager) Start(ctx context.Context) {
	if m.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	events := m.bus.Subscribe("connection-manager")
	go func() {
		defer close(m.done)
		for {
			select {
			case <-runCtx.Done():
				m.bus.Unsubscribe("connection-manager")
				return
			case env, ok := <-events:
				if !ok {
					return
				}
				m.record(env)
				m.broadcast(env)
			}
		}
	}()
}

// Stop halts the forwarding goroutine and waits for it to exit.
func (m *ConnectionManager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
}

// record appends env to the ring buffer, evicting the oldest entry once full.
func (m *ConnectionManager) record(env Envelope) {
	m.ringMu.Lock()
	defer m.ringMu.Unlock()
	m.ring = append(m.ring, env)
	if len(m.ring) > catchupLimit {
		m.ring = m.ring[len(m.ring)-catchupLimit:]
	}
}

// HandleConnection manages the lifecycle of a single WebSocket connection.
// Called by the WebSocket HTTP handler after upgrade. Blocks until the
// connection closes.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	connID := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &Connection{ID: connID, Conn: conn, ctx: ctx, cancel: cancel}

	m.registerConnection(c)
	defer m.unregisterConnection(c)

	m.sendJSON(c, map[string]string{"type": "connection.established", "connection_id": connID})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid WebSocket message", "connection_id", connID, "error", err)
			continue
		}

		m.handleClientMessage(c, &msg)
	}
}

func (m *ConnectionManager) handleClientMessage(c *Connection, msg *ClientMessage) {
	switch msg.Action {
	case "subscribe":
		c.subscribed = true
		m.sendJSON(c, map[string]string{"type": "subscription.confirmed", "channel": msg.Channel})
		m.sendCatchup(c)

	case "unsubscribe":
		c.subscribed = false

	case "ping":
		m.sendJSON(c, map[string]string{"type": "pong"})
	}
}

// sendCatchup replays buffered events so a late observer doesn't miss history.
func (m *ConnectionManager) sendCatchup(c *Connection) {
	m.ringMu.Lock()
	buffered := make([]Envelope, len(m.ring))
	copy(buffered, m.ring)
	m.ringMu.Unlock()

	for _, env := range buffered {
		m.sendJSON(c, env)
	}
}

// broadcast sends an event to every subscribed connection.
func (m *ConnectionManager) broadcast(env Envelope) {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, c := range m.connections {
		if c.subscribed {
			conns = append(conns, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range conns {
		m.sendJSON(c, env)
	}
}

// ActiveConnections returns the count of active WebSocket connections.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *ConnectionManager) registerConnection(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.ID] = c
}

func (m *ConnectionManager) unregisterConnection(c *Connection) {
	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()

	c.cancel()
	_ = c.Conn.Close(websocket.StatusNormalClosure, "")
}

func (m *ConnectionManager) sendJSON(c *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("failed to marshal WebSocket message", "connection_id", c.ID, "error", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	if err := c.Conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		slog.Warn("failed to send WebSocket message", "connection_id", c.ID, "error", err)
	}
}
