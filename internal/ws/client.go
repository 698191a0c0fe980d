package ws

import (
	"encoding/json"
	"sync"
	"time"

	"teos_mining/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
	sendBuffer = 64
)

type Client struct {
	AccountID uuid.UUID
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *Hub
	Done      chan struct{}

	closeOnce sync.Once
}

func NewClient(accountID uuid.UUID, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		AccountID: accountID,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		Hub:       hub,
		Done:      make(chan struct{}),
	}
}

// Run starts the writer, sends the ready handshake, then reads until the
// peer goes away.
func (c *Client) Run() {
	go c.writePump()
	c.send(Message{Type: MsgReady})
	c.readPump()
}

func (c *Client) queue(msg []byte) {
	select {
	case <-c.Done:
	case c.Send <- msg:
	default:
		logger.Warn("ws send buffer full, frame dropped", "account_id", c.AccountID)
	}
}

func (c *Client) send(m Message) {
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	c.queue(b)
}

func (c *Client) readPump() {
	defer c.disconnect()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws read error", "account_id", c.AccountID, "error", err)
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			c.send(Message{Type: MsgError, Data: ErrorPayload{Message: "invalid message"}})
			continue
		}
		switch in.Type {
		case MsgPing:
			c.send(Message{Type: MsgPong})
		default:
			c.send(Message{Type: MsgError, Data: ErrorPayload{Message: "unknown message type"}})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.Done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws write error", "account_id", c.AccountID, "error", err)
				c.disconnect()
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.disconnect()
				return
			}
		}
	}
}

func (c *Client) disconnect() {
	c.closeOnce.Do(func() {
		close(c.Done)
		c.Hub.Unregister(c)
		_ = c.Conn.Close()
	})
}
