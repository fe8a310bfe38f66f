package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/anventec/dlpal/internal/app"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// FinishedFrame is the single terminal frame closing a progress stream.
type FinishedFrame struct {
	Finished  bool   `json:"finished"`
	SessionID string `json:"session_id"`
	Error     string `json:"error,omitempty"`
}

// ProgressWebSocketHandler streams download progress over a WebSocket. A new
// connection becomes the bus's single subscriber, displacing any previous
// one.
type ProgressWebSocketHandler struct {
	bus    *app.ProgressBus
	logger *zap.Logger
}

// NewProgressWebSocketHandler creates a new WebSocket handler
func NewProgressWebSocketHandler(bus *app.ProgressBus, logger *zap.Logger) *ProgressWebSocketHandler {
	return &ProgressWebSocketHandler{
		bus:    bus,
		logger: logger,
	}
}

// HandleWebSocket handles GET /api/v1/session/progress. The client receives
// zero or more ProgressEvent frames followed by exactly one FinishedFrame,
// after which the connection stays open for the next session.
func (h *ProgressWebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("Progress subscriber connected",
		zap.String("remote_addr", c.Request.RemoteAddr))

	// Read messages from client to detect disconnect (and serve ping/pong)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		sub := h.bus.Subscribe()
		if !h.streamSession(conn, sub, done, ticker) {
			h.bus.Unsubscribe()
			return
		}
	}
}

// streamSession forwards one session's events and terminal frame. It
// returns false when the connection is gone.
func (h *ProgressWebSocketHandler) streamSession(conn *websocket.Conn, sub *app.Subscription, done chan struct{}, ticker *time.Ticker) bool {
	events := sub.Events
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// Stream closed; the terminal frame arrives on Done.
				events = nil
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("Failed to marshal progress event", zap.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return false
			}

		case fin, ok := <-sub.Done:
			if !ok {
				// Displaced by a newer subscriber.
				return false
			}
			frame := FinishedFrame{Finished: true, SessionID: fin.SessionID}
			if fin.Err != nil {
				frame.Error = fin.Err.Error()
			}
			data, _ := json.Marshal(frame)
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return false
			}
			return true

		case <-ticker.C:
			// Send ping to keep connection alive
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return false
			}

		case <-done:
			return false
		}
	}
}
