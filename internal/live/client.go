package live

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/despachantemarcelino/hookd/internal/metrics"
)

const (
	writeTimeout   = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongTimeout    = 60 * time.Second
	maxMessageSize = 4 * 1024
)

// Client is one connected websocket subscriber.
type Client struct {
	ID     string
	conn   *websocket.Conn
	sendCh chan []byte

	mu     sync.Mutex
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(conn *websocket.Conn, bufferSize int) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:     uuid.NewString(),
		conn:   conn,
		sendCh: make(chan []byte, bufferSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run blocks until the connection ends.
func (c *Client) Run() {
	go c.writePump()
	go c.pingPump()
	c.readPump()
}

// Close ends the connection with status. Safe to call more than once.
func (c *Client) Close(status websocket.StatusCode, reason string) {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return
	default:
		close(c.done)
	}
	c.mu.Unlock()

	c.cancel()
	c.conn.Close(status, reason)
}

// Send queues msg. A full buffer drops the message rather than stall the
// webhook request that produced it.
func (c *Client) Send(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.enqueue(data)
	return nil
}

func (c *Client) enqueue(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.sendCh <- data:
	default:
		metrics.IncrementLiveDropped()
		log.Warn().Str("client_id", c.ID).Msg("Live client send buffer full, dropping message")
	}
}

func (c *Client) readPump() {
	defer c.Close(websocket.StatusNormalClosure, "closing")

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("Live read error")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("", "Invalid JSON message")
			continue
		}

		switch msg.Type {
		case MessageTypePing:
			_ = c.Send(&Message{ID: msg.ID, Type: MessageTypePong})
		default:
			c.sendError(msg.ID, "Unknown message type")
		}
	}
}

func (c *Client) writePump() {
	for {
		select {
		case data := <-c.sendCh:
			ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("Live write error")
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) pingPump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, pongTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("Ping failed")
				c.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) sendError(id, message string) {
	payload, _ := json.Marshal(&ErrorPayload{Message: message})
	_ = c.Send(&Message{ID: id, Type: MessageTypeError, Payload: payload})
}
