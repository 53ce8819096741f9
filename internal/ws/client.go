package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/manpreetbhatti/fresco/backend/internal/protocol"
	"github.com/manpreetbhatti/fresco/backend/internal/ratelimit"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 64 * 1024
	messagesPerSecond = 200
	messageBurst      = 400
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one live socket connection. Session state (current room,
// disconnect flag) is owned by the hub's Run goroutine; the pumps never
// touch it.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	id      string
	limiter *ratelimit.Limiter

	// Owned by the hub's Run goroutine
	room string
	gone bool
}

func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	client := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 512),
		id:      uuid.NewString(),
		limiter: ratelimit.NewLimiter(messagesPerSecond, messageBurst),
	}

	log.Printf("Client %s connected", client.id)

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	rateLimitWarnings := 0

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if !c.limiter.Allow() {
			rateLimitWarnings++
			if rateLimitWarnings%100 == 1 {
				log.Printf("⚠️ Rate limit exceeded for client %s (warning #%d)", c.id, rateLimitWarnings)
			}
			if rateLimitWarnings > 1000 {
				log.Printf("🚫 Disconnecting client %s for excessive rate limit violations", c.id)
				return
			}
			continue
		}

		var env protocol.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			log.Printf("⚠️ Invalid message from client %s", c.id)
			continue
		}

		// Cursor samples beyond ~60Hz are dropped here, before they cost a
		// hub dispatch. Dropped samples are lost, never queued.
		if env.Event == protocol.EventCursorMove {
			if !c.hub.throttle.Allow(c.id, time.Now().UnixMilli()) {
				continue
			}
		}

		c.hub.inbound <- &event{client: c, env: env}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
