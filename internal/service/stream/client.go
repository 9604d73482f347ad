package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	drepo "DeskSync/internal/domain/repository"
	"DeskSync/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements an EventStream backed by the backend's WebSocket push
// channel. A single reader goroutine dispatches frames to topic handlers in
// delivery order; a reconnect re-issues subscriptions for all active topics.
type Client struct {
	url            string
	apiKey         string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	nextID    uint64
	handlers  map[string]map[uint64]drepo.EventHandler
	readCtx   context.Context
	readStop  context.CancelFunc
}

// New creates a new push-event stream client.
func New(url, apiKey string, reconnectDelay, pingInterval time.Duration, lgr *logger.Logger) *Client {
	return &Client{
		url:            url,
		apiKey:         apiKey,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		logger:         lgr,
		handlers:       make(map[string]map[uint64]drepo.EventHandler),
	}
}

// frame is the wire shape of one push event.
type frame struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Connect establishes the WebSocket connection and starts the read and ping
// loops. Subscriptions registered before Connect are sent immediately.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.url, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.readCtx, c.readStop = context.WithCancel(ctx)
	topics := c.activeTopicsLocked()
	c.mu.Unlock()

	for _, t := range topics {
		if err := c.sendSubscribe(t); err != nil {
			return err
		}
	}

	go c.pingLoop(c.readCtx, conn)
	go c.readLoop(c.readCtx, conn)

	c.logger.Info("stream: connected", logger.String("url", c.url))
	return nil
}

// Subscribe registers a handler for topic and returns an unsubscribe closure.
// The first handler for a topic triggers a subscribe frame when connected.
func (c *Client) Subscribe(topic string, handler drepo.EventHandler) (func(), error) {
	if topic == "" {
		return nil, fmt.Errorf("stream subscribe: topic required")
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	first := len(c.handlers[topic]) == 0
	if c.handlers[topic] == nil {
		c.handlers[topic] = make(map[uint64]drepo.EventHandler)
	}
	c.handlers[topic][id] = handler
	connected := c.connected
	c.mu.Unlock()

	if first && connected {
		if err := c.sendSubscribe(topic); err != nil {
			c.mu.Lock()
			delete(c.handlers[topic], id)
			c.mu.Unlock()
			return nil, err
		}
	}

	unsub := func() {
		c.mu.Lock()
		delete(c.handlers[topic], id)
		last := len(c.handlers[topic]) == 0
		if last {
			delete(c.handlers, topic)
		}
		connected := c.connected
		c.mu.Unlock()
		if last && connected {
			_ = c.sendUnsubscribe(topic)
		}
	}
	return unsub, nil
}

// Reconnect closes and re-dials, then re-issues active subscriptions.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	return c.Connect(ctx)
}

// Close closes the connection. Handlers stay registered for the next connect.
func (c *Client) Close() error {
	c.mu.Lock()
	c.connected = false
	conn := c.conn
	c.conn = nil
	if c.readStop != nil {
		c.readStop()
		c.readStop = nil
	}
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) activeTopicsLocked() []string {
	topics := make([]string, 0, len(c.handlers))
	for t := range c.handlers {
		topics = append(topics, t)
	}
	return topics
}

func (c *Client) sendSubscribe(topic string) error {
	return c.writeControl(map[string]string{"type": "subscribe", "topic": topic})
}

func (c *Client) sendUnsubscribe(topic string) error {
	return c.writeControl(map[string]string{"type": "unsubscribe", "topic": topic})
}

func (c *Client) writeControl(msg map[string]string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("stream not connected")
	}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("stream %s %s: %w", msg["type"], msg["topic"], err)
	}
	return nil
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}

// readLoop is the single dispatcher: handlers for a topic run sequentially in
// frame arrival order, which is what gives at-most-once in-order delivery.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("stream: read failed, reconnecting", logger.Error(err))
			if rerr := c.Reconnect(ctx); rerr != nil {
				c.logger.Error("stream: reconnect failed", logger.Error(rerr))
			}
			return
		}

		var f frame
		if err := json.Unmarshal(b, &f); err != nil || f.Topic == "" {
			// control acks and malformed frames carry no topic
			continue
		}

		c.mu.Lock()
		hs := make([]drepo.EventHandler, 0, len(c.handlers[f.Topic]))
		for _, h := range c.handlers[f.Topic] {
			hs = append(hs, h)
		}
		c.mu.Unlock()

		for _, h := range hs {
			h(f.Topic, f.Payload)
		}
	}
}

var _ drepo.EventStream = (*Client)(nil)
