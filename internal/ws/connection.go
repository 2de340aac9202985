package ws

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/Etopia1/UberAppBackend/internal/events"
)

const (
	writeDeadline  = 10 * time.Second
	pongDeadline   = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 1024 * 512 // video frames ride this channel
	sendBuffer     = 256
)

// Connection adapts a websocket to the registry's connection handle.
// Outbound events flow through a buffered channel; a full buffer drops
// the event rather than block the pusher.
type Connection struct {
	id     string
	userID string
	ws     *websocket.Conn
	send   chan events.Event

	closeOnce sync.Once
	done      chan struct{}
}

func NewConnection(conn *websocket.Conn, userID string) *Connection {
	return &Connection{
		id:     uuid.NewString(),
		userID: userID,
		ws:     conn,
		send:   make(chan events.Event, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Connection) ID() string     { return c.id }
func (c *Connection) UserID() string { return c.userID }

// Push queues ev for delivery. Non-blocking; reports acceptance.
func (c *Connection) Push(ev events.Event) bool {
	select {
	case c.send <- ev:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case ev := <-c.send:
			frame, err := events.Wrap(ev)
			if err != nil {
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Connection) readPump(handle func(raw []byte)) {
	defer c.close()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongDeadline))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongDeadline))
	})
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		handle(raw)
	}
}
