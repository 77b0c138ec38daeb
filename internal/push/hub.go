package push

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

const clientBuffer = 32

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Client is one registered connection.
type Client struct {
	conn     Conn
	channels []string
	send     chan Message
	once     sync.Once
}

// Hub fans messages out to the connections registered on this node.
// Slow connections drop messages instead of blocking publishers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Client]struct{}
	log  *logrus.Entry
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		subs: make(map[string]map[*Client]struct{}),
		log:  log.WithField("component", "push"),
	}
}

// Register subscribes conn to channels and starts its writer.
func (h *Hub) Register(conn Conn, channels ...string) *Client {
	c := &Client{conn: conn, channels: channels, send: make(chan Message, clientBuffer)}

	h.mu.Lock()
	for _, ch := range channels {
		if h.subs[ch] == nil {
			h.subs[ch] = make(map[*Client]struct{})
		}
		h.subs[ch][c] = struct{}{}
	}
	h.mu.Unlock()

	go h.writePump(c)
	return c
}

// Unregister removes the client and closes its connection. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	c.once.Do(func() {
		h.mu.Lock()
		for _, ch := range c.channels {
			delete(h.subs[ch], c)
			if len(h.subs[ch]) == 0 {
				delete(h.subs, ch)
			}
		}
		close(c.send)
		h.mu.Unlock()
		_ = c.conn.Close()
	})
}

// Publish queues msg for every client on channel.
func (h *Hub) Publish(_ context.Context, channel string, msg Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subs[channel] {
		select {
		case c.send <- msg:
		default:
			h.log.WithFields(logrus.Fields{"channel": channel, "message_id": msg.ID}).Warn("Client buffer full, dropping message")
		}
	}
	return nil
}

// Subscribers returns the number of clients on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

func (h *Hub) writePump(c *Client) {
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			h.log.WithError(err).Debug("Write to client failed, closing")
			go h.Unregister(c)
			return
		}
	}
}
