package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mintdeck/mintdeck/internal/models"
)

// Push channel message types. Every frame is an envelope
// {type, data}; "connected" is sent once on open, "stats" on every push
// interval, "log" immediately per appended log entry.
const (
	msgConnected = "connected"
	msgStats     = "stats"
	msgLog       = "log"
)

const (
	writeWait      = 10 * time.Second
	clientSendSlot = 64
)

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// MemoryUsage is the process memory slice of a stats push.
type MemoryUsage struct {
	AllocBytes uint64 `json:"alloc_bytes"`
	SysBytes   uint64 `json:"sys_bytes"`
}

// StatsPayload is the lightweight per-tick snapshot pushed to every
// subscriber. It deliberately skips the remote probe and database pass:
// those are too expensive to rerun every five seconds per client.
type StatsPayload struct {
	Memory    MemoryUsage             `json:"memory"`
	UptimeSec int64                   `json:"uptime_sec"`
	OS        models.HostResources    `json:"os"`
	Requests  []models.ActivityRecord `json:"requests"`
	Timestamp int64                   `json:"timestamp"`
}

// StatsFunc builds the payload for one stats push.
type StatsFunc func() StatsPayload

// Client is one connected push subscriber. Its lifecycle is
// connect → open → closed; on any send error the client is dropped and
// its timer stops. Clients are fully independent of each other.
type Client struct {
	id          string
	conn        *websocket.Conn
	send        chan []byte
	done        chan struct{}
	connectedAt time.Time
	lastPushAt  time.Time

	hub  *Hub
	once sync.Once
}

// Hub tracks active push subscribers and fans log entries out to them.
// A slow or dead subscriber never blocks the others: sends are
// best-effort through a buffered per-client channel, and a full channel
// evicts the client.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	interval time.Duration
	stats    StatsFunc
	log      *zap.Logger
}

// NewHub creates a hub pushing stats every interval.
func NewHub(interval time.Duration, stats StatsFunc, log *zap.Logger) *Hub {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:  make(map[string]*Client),
		interval: interval,
		stats:    stats,
		log:      log,
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adopts an upgraded connection: queues the connected ack,
// adds the client to the registry, and starts its pumps.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	c := &Client{
		id:          uuid.New().String(),
		conn:        conn,
		send:        make(chan []byte, clientSendSlot),
		done:        make(chan struct{}),
		connectedAt: time.Now(),
		hub:         h,
	}

	// Queued before the pumps start, so it is always the first frame.
	c.send <- mustMarshal(envelope{Type: msgConnected, Data: map[string]any{"id": c.id}})

	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	h.log.Info("subscriber connected",
		zap.String("client_id", c.id),
		zap.Int("total", total))

	go c.writePump()
	go c.readPump()
	return c
}

// BroadcastLog delivers one appended log entry to every subscriber,
// immediately and independently of the stats timer.
func (h *Hub) BroadcastLog(entry models.LogEntry) {
	frame := mustMarshal(envelope{Type: msgLog, Data: entry})

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case <-c.done:
			// Already closing; nothing to deliver.
		case c.send <- frame:
		default:
			// Channel full: the subscriber is not draining. Evict it
			// rather than block or reorder.
			h.drop(c, "send buffer full")
		}
	}
}

// Shutdown disconnects every subscriber.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.drop(c, "server shutting down")
	}
}

// drop removes a client from the registry and signals its pumps to stop,
// exactly once. The send channel is never closed, so concurrent
// broadcasts cannot hit a closed channel.
func (h *Hub) drop(c *Client, reason string) {
	c.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		total := len(h.clients)
		h.mu.Unlock()

		close(c.done)
		h.log.Info("subscriber disconnected",
			zap.String("client_id", c.id),
			zap.String("reason", reason),
			zap.Int("total", total))
	})
}

// writePump owns all writes to the socket: queued frames from the send
// channel plus the periodic stats tick. The ticker lives and dies with
// the client; no timers leak past a disconnect.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.interval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.hub.drop(c, "write failed")
				return
			}
		case <-ticker.C:
			frame := mustMarshal(envelope{Type: msgStats, Data: c.hub.stats()})
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.hub.drop(c, "stats push failed")
				return
			}
			c.lastPushAt = time.Now()
		}
	}
}

// readPump discards inbound frames; its job is to notice the peer
// closing the connection.
func (c *Client) readPump() {
	defer c.hub.drop(c, "connection closed")
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Envelope payloads are our own types; a marshal failure is a
		// programming error.
		panic(err)
	}
	return b
}
