package control

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 512
	wsSendBufferSize = 8
)

// upgrader performs the HTTP -> WebSocket upgrade for /status/stream.
// Origin checking is left to a reverse proxy if one is ever put in front;
// the control surface itself is bound to localhost and unauthenticated.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// statusClient is one connected /status/stream peer. writePump is the only
// goroutine allowed to write to conn, per gorilla/websocket's concurrency
// contract.
type statusClient struct {
	hub    *statusHub
	conn   *websocket.Conn
	send   chan any
	logger *zap.Logger
}

func newStatusClient(hub *statusHub, w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*statusClient, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &statusClient{
		hub:    hub,
		conn:   conn,
		send:   make(chan any, wsSendBufferSize),
		logger: logger.With(zap.String("remote_addr", r.RemoteAddr)),
	}, nil
}

// run registers the client and blocks until the connection closes.
func (c *statusClient) run() {
	c.hub.subscribe(c)
	go c.writePump()
	c.readPump()
}

// readPump's only job is detecting disconnection — the protocol is
// server-push only, clients never send application messages.
func (c *statusClient) readPump() {
	defer func() {
		c.hub.unsubscribe(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *statusClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn("status stream write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
