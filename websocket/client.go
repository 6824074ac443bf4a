package websocket

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Afterbark/youtube-to-mp3/types"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// NewUpgrader returns an upgrader accepting the given origins; "*" or an
// empty list accepts any origin
func NewUpgrader(origins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(allowed) == 0 || allowed["*"] || origin == "" || allowed[origin]
		},
	}
}

// Client represents a WebSocket client following one task, or all of them
type Client struct {
	hub    Hub
	conn   *websocket.Conn
	send   chan types.ProgressMessage
	taskID string
	logger *slog.Logger

	// last update timestamp written per task, owned by writePump
	lastSent map[string]time.Time
}

// NewClient creates a new WebSocket client
func NewClient(hub Hub, conn *websocket.Conn, taskID string, logger *slog.Logger) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan types.ProgressMessage, 256),
		taskID:   taskID,
		logger:   logger,
		lastSent: make(map[string]time.Time),
	}
}

// Prime queues a snapshot ahead of any broadcast. Call before RegisterClient.
func (c *Client) Prime(task types.Task) {
	select {
	case c.send <- types.NewProgressMessage(task):
	default:
	}
}

// StartPumps starts the read and write pumps for the client
func (c *Client) StartPumps() {
	go c.writePump()
	go c.readPump()
}

// readPump only services control frames; clients never send data
func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "task_id", c.taskID, "error", err)
			}
			return
		}
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
			if c.stale(message) {
				continue
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Debug("websocket write error", "task_id", c.taskID, "error", err)
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

// stale drops updates older than one already written for the same task
func (c *Client) stale(message types.ProgressMessage) bool {
	last, seen := c.lastSent[message.TaskID]
	if seen && message.Timestamp.Before(last) {
		return true
	}
	c.lastSent[message.TaskID] = message.Timestamp
	return false
}
