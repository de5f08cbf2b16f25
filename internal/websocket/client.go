package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// writeWait is time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// pongWait is time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound frames; clients only listen
	maxMessageSize = 512

	// sendBufferSize is how many events may queue before a slow client is dropped
	sendBufferSize = 64
)

// Client is one WebSocket connection following every loan or a single loan
type Client struct {
	id        string
	loanID    uuid.UUID
	conn      *websocket.Conn
	hub       *Hub
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a client for conn. uuid.Nil follows every loan.
func NewClient(conn *websocket.Conn, loanID uuid.UUID, hub *Hub) *Client {
	return &Client{
		id:     uuid.New().String(),
		loanID: loanID,
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// ID returns the client's unique identifier
func (c *Client) ID() string {
	return c.id
}

// LoanID returns the followed loan, or uuid.Nil when following every loan
func (c *Client) LoanID() uuid.UUID {
	return c.loanID
}

// Topic returns the hub topic for the followed loan
func (c *Client) Topic() string {
	return TopicFor(c.loanID)
}

// Send queues an encoded event. A full queue drops the client.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		c.Close()
		return ErrClientClosed
	}
}

// Close stops both pumps and closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Run registers the client, confirms its subscription and pumps events until
// the connection ends. It blocks, so callers run it in its own goroutine.
func (c *Client) Run() {
	if data, err := Subscribed(c.loanID).ToJSON(); err == nil {
		c.send <- data
	}

	c.hub.Register(c)
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	go c.writePump()
	c.readPump()
}

// readPump keeps the read deadline alive and returns when the peer goes away
func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("client_id", c.id).Str("topic", c.Topic()).Msg("WebSocket unexpected close")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().Err(err).Str("client_id", c.id).Str("topic", c.Topic()).Msg("WebSocket write error")
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
