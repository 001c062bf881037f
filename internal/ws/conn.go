package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/Jacobgokul/Pinge/internal/auth"
	"github.com/Jacobgokul/Pinge/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

// CloseInvalidCredential is sent when the token presented at connection
// time fails validation. Clients must not retry with the same token.
const CloseInvalidCredential = 4003

type Client struct {
	registry  *Registry
	conn      *websocket.Conn
	send      chan []byte
	userID    string
	username  string
	closeOnce sync.Once
}

func newClient(r *Registry, conn *websocket.Conn, userID, username string) *Client {
	return &Client{registry: r, conn: conn, send: make(chan []byte, 256), userID: userID, username: username}
}

// enqueue hands an event to the client's write pump without blocking.
// Returns false when the buffer is full or the channel is closed.
func (c *Client) enqueue(b []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.send) })
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve upgrades the connection, then validates the token passed as a
// query parameter (the transport does not carry custom headers
// uniformly). An invalid, expired or revoked credential is refused with
// a distinguishable close code right after the handshake.
func Serve(reg *Registry, db *gorm.DB, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		token := c.Query("token")
		user, err := auth.ValidateSession(db, cfg, token)
		if err != nil {
			msg := websocket.FormatCloseMessage(CloseInvalidCredential, "invalid credential")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(5*time.Second))
			_ = conn.Close()
			return
		}

		client := newClient(reg, conn, user.ID, user.Username)
		reg.Register(user.ID, client)

		go client.writePump()
		client.readPump()
	}
}

// readPump keeps the read deadline fresh and discards inbound payloads;
// clients talk to the server over HTTP, the socket is push-only.
func (c *Client) readPump() {
	defer func() {
		c.registry.Unregister(c.userID, c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(1 << 20) // 1MB
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	}
}

// writePump is the single writer for this connection, which is what
// preserves per-connection delivery order.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			_ = w.Close()
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
