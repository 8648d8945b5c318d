package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teranos/curio/pulse/async"
)

// WebSocket timeout constants following Gorilla best practices
// See: https://github.com/gorilla/websocket/blob/master/examples/chat/client.go
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Client represents a WebSocket client connection
type Client struct {
	server    *CurioServer
	conn      *websocket.Conn
	sendMsg   chan interface{}
	id        string
	closeOnce sync.Once // prevents double-close panics
}

// readPump handles reading messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.server.logger.Debugw("Read pump started", "client_id", c.id)

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			c.server.logger.Warnw("JSON unmarshal error",
				"error", err.Error(),
				"client_id", c.id,
			)
			continue
		}

		c.routeMessage(&msg)
	}
}

// handleReadError logs unexpected WebSocket read errors.
// Expected closure codes (going away, abnormal, no status) are silently ignored.
func (c *Client) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		c.server.logger.Warnw("WebSocket read error",
			"error", err.Error(),
			"client_id", c.id,
		)
	}
}

// routeMessage dispatches incoming WebSocket messages to appropriate handlers
func (c *Client) routeMessage(msg *ClientMessage) {
	switch msg.Type {
	case "job_control":
		c.handleJobControl(msg)
	case "ping":
		// Deadline already refreshed by the pong handler
	default:
		c.server.logger.Debugw("Unknown message type",
			"type", msg.Type,
			"client_id", c.id,
		)
	}
}

// writePump writes queued messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	c.server.logger.Debugw("Write pump started", "client_id", c.id)

	for {
		select {
		case <-c.server.ctx.Done():
			c.server.logger.Debugw("Write pump stopping due to server shutdown", "client_id", c.id)
			return
		case msg, ok := <-c.sendMsg:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.logger.Debugw("Message write error",
					"error", err.Error(),
					"client_id", c.id,
				)
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

// sendJSON is a helper to send JSON messages to the client
func (c *Client) sendJSON(data interface{}) {
	select {
	case c.sendMsg <- data:
	default:
		c.server.logger.Warnw("Failed to queue message (channel full)",
			"client_id", c.id,
		)
	}
}

// handleJobControl handles job pause/resume/details requests
func (c *Client) handleJobControl(msg *ClientMessage) {
	c.server.logger.Infow("Job control request",
		"action", msg.Action,
		"job_id", shortID(msg.JobID),
		"client_id", c.id,
	)

	if msg.JobID == "" {
		c.server.logger.Warnw("Missing job ID",
			"action", msg.Action,
			"client_id", c.id,
		)
		return
	}

	if c.server.daemon == nil {
		c.server.logger.Warnw("Queue not available",
			"job_id", shortID(msg.JobID),
			"client_id", c.id,
		)
		return
	}
	queue := c.server.daemon.GetQueue()

	var err error
	switch msg.Action {
	case "pause":
		reason := msg.Reason
		if reason == "" {
			reason = "paused by client"
		}
		err = queue.PauseJob(msg.JobID, reason)
		if err == nil {
			if job, getErr := queue.GetJob(msg.JobID); getErr == nil {
				c.server.broadcastJobUpdate(job)
			}
		}

	case "resume":
		err = queue.ResumeJob(msg.JobID)
		if err == nil {
			if job, getErr := queue.GetJob(msg.JobID); getErr == nil {
				c.server.broadcastJobUpdate(job)
			}
		}

	case "details":
		var job *async.Job
		job, err = queue.GetJob(msg.JobID)
		if err == nil {
			c.sendJSON(JobUpdateMessage{
				Type: "job_details",
				Job:  job,
				Metadata: map[string]interface{}{
					"timestamp": time.Now().Unix(),
				},
			})
		}

	default:
		c.server.logger.Warnw("Unknown job control action",
			"action", msg.Action,
			"client_id", c.id,
		)
		return
	}

	if err != nil {
		c.server.logger.Errorw("Job control failed",
			"action", msg.Action,
			"job_id", shortID(msg.JobID),
			"error", err,
			"client_id", c.id,
		)
	}
}

// close safely closes the client's send channel
func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.sendMsg != nil {
			close(c.sendMsg)
		}
	})
}
