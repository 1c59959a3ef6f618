// File: internal/server/stream.go
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xkilldash9x/websec-cli/internal/events"
)

// TypeSnapshot is the first message of every stream; its payload is the
// current orchestrator.Snapshot.
const TypeSnapshot events.Type = "snapshot"

// Constants for WebSocket timeouts and limits (based on Gorilla WebSocket examples).
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// The stream is server to client only; clients send nothing but control frames.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API binds to loopback by default and is consumed by local dashboards.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamClient is one connected WebSocket consumer of scan events.
type streamClient struct {
	conn   *websocket.Conn
	logger *zap.Logger
	// closed is closed by the readPump when the peer goes away.
	closed chan struct{}
}

// HandleScanStream upgrades the connection and streams scan events until the
// peer disconnects or the server shuts down.
func (h *Handlers) HandleScanStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade already replied with an HTTP error.
		h.log.Warn("Failed to upgrade connection to WebSocket", zap.Error(err))
		return
	}
	h.log.Debug("Scan stream connected", zap.String("remoteAddr", r.RemoteAddr))

	// Subscribe before taking the snapshot so no transition falls in between.
	msgs, unsubscribe := h.scans.Subscribe()
	defer unsubscribe()

	client := &streamClient{conn: conn, logger: h.log, closed: make(chan struct{})}
	go client.readPump()

	initial := events.Message{
		ID:        "snapshot",
		Timestamp: time.Now().UTC(),
		Type:      TypeSnapshot,
		Payload:   h.scans.Snapshot(),
	}
	client.writePump(h.baseCtx, initial, msgs)
	h.log.Debug("Scan stream finished", zap.String("remoteAddr", r.RemoteAddr))
}

// readPump drains control frames so pongs and close frames are processed.
func (c *streamClient) readPump() {
	defer func() {
		close(c.closed)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("Scan stream closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}

// writePump is the only writer on the connection.
func (c *streamClient) writePump(ctx context.Context, initial events.Message, msgs <-chan events.Message) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	if err := c.write(initial); err != nil {
		return
	}

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				// The bus shut down.
				c.closeGracefully()
				return
			}
			if err := c.write(msg); err != nil {
				c.logger.Debug("Error writing to scan stream", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		case <-ctx.Done():
			c.closeGracefully()
			return
		}
	}
}

func (c *streamClient) write(msg events.Message) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

func (c *streamClient) closeGracefully() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
}
