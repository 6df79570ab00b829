package progress

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/videopipeline/orchestrator/internal/platform/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one connected observer socket.
type client struct {
	conn    *websocket.Conn
	send    chan Envelope
	closed  chan struct{}
	once    sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// WebSocketHub is the push-socket ProgressNotifier (spec.md §4.6), grounded
// on the ISX report scraper's websocket.Hub broadcast loop, adapted to
// speak the stage_started/stage_completed/stage_failed envelope and to
// accept inbound ping/subscribe control messages.
type WebSocketHub struct {
	log *logger.Logger

	mu      sync.RWMutex
	clients map[*client]bool
}

func NewWebSocketHub(log *logger.Logger) *WebSocketHub {
	return &WebSocketHub{
		log:     log.With("component", "ProgressHub"),
		clients: map[*client]bool{},
	}
}

// ServeHTTP upgrades the request to a websocket connection, broadcasts all
// events to it (current design does not filter by pipelineId subscription),
// and prunes the connection from the hub when it closes.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan Envelope, sendBuffer), closed: make(chan struct{})}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	h.sendEnvelope(c, Envelope{
		Type:      MessageConnection,
		Status:    "connected",
		Timestamp: nowRFC3339(),
		Message:   "connected to pipeline progress channel",
	})

	go h.readPump(c)
	h.writePump(c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// readPump handles inbound control messages: {"type":"ping"} and
// {"type":"subscribe","pipelineId":"..."}. A subscribe request is only
// logged; no per-client subscription is kept, and every event is broadcast
// to every client.
func (h *WebSocketHub) readPump(c *client) {
	defer c.close()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg struct {
			Type       string `json:"type"`
			PipelineID string `json:"pipelineId"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "ping":
			h.sendEnvelope(c, Envelope{Type: MessagePong, Timestamp: nowRFC3339()})
		case "subscribe":
			h.log.Debug("client subscribed", "pipelineId", msg.PipelineID)
		}
	}
}

func (h *WebSocketHub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHub) sendEnvelope(c *client, env Envelope) {
	select {
	case c.send <- env:
	default:
		h.log.Warn("dropping message; client buffer full, pruning connection")
		c.close()
	}
}

// broadcast fans an envelope out to every connected client; a client whose
// send buffer is full (or whose connection died mid-broadcast) is pruned
// rather than blocking the others.
func (h *WebSocketHub) broadcast(env Envelope) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		h.sendEnvelope(c, env)
	}
}

func (h *WebSocketHub) NotifyStageStarted(_ context.Context, pipelineID, videoID, stageName string) {
	h.broadcast(Envelope{
		Type:       MessageStageStarted,
		PipelineID: pipelineID,
		VideoID:    videoID,
		StageName:  stageName,
		Timestamp:  nowRFC3339(),
	})
}

func (h *WebSocketHub) NotifyStageCompleted(_ context.Context, pipelineID, videoID, stageName string, progressPercentage float64) {
	pct := progressPercentage
	h.broadcast(Envelope{
		Type:               MessageStageCompleted,
		PipelineID:         pipelineID,
		VideoID:            videoID,
		StageName:          stageName,
		ProgressPercentage: &pct,
		Timestamp:          nowRFC3339(),
	})
}

func (h *WebSocketHub) NotifyStageFailed(_ context.Context, pipelineID, videoID, stageName, errorMessage string) {
	h.broadcast(Envelope{
		Type:         MessageStageFailed,
		PipelineID:   pipelineID,
		VideoID:      videoID,
		StageName:    stageName,
		ErrorMessage: errorMessage,
		Timestamp:    nowRFC3339(),
	})
}

func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }
