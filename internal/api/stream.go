package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go-ticker/internal/common"
	"go-ticker/internal/metrics"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Stream pushes every snapshot for ?timeframe= as a JSON text message.
// GET /api/v1/stream
func (h *Handler) Stream(c *gin.Context) {
	ch, cancel, err := h.service.Watch(c.Query("timeframe"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error(err, common.ErrCodeWebsocketFailed, common.ErrMsgWebsocketFailed, "WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	metrics.Subscribers.WithLabelValues("websocket").Inc()
	defer metrics.Subscribers.WithLabelValues("websocket").Dec()

	// The reader only drains control frames and notices the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				h.logger.Warn(common.ErrCodeWebsocketFailed, common.ErrMsgWebsocketFailed,
					"Failed to write snapshot", "error", err.Error())
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
