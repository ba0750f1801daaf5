package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"stockledger/internal/core/apperror"
	"stockledger/internal/infrastructure/broadcast"
	"stockledger/pkg/logger"
)

const (
	defaultWriteTimeout = 10 * time.Second
	pongWait            = 60 * time.Second
	pingInterval        = pongWait * 9 / 10
	maxClientMessage    = 512
)

// EventsHandler streams committed ledger events over a websocket.
type EventsHandler struct {
	*BaseHandler
	hub          *broadcast.Hub
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
}

// NewEventsHandler creates an events handler. A zero writeTimeout uses 10s.
func NewEventsHandler(base *BaseHandler, hub *broadcast.Hub, writeTimeout time.Duration) *EventsHandler {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &EventsHandler{
		BaseHandler: base,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Viewers are served from other origins (dashboards, CLI).
			CheckOrigin: func(*http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
	}
}

// Stream handles GET /events.
//
// The subscription is registered before the handshake completes, so a
// client that performs its full read after connecting misses nothing.
func (h *EventsHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()

	sub, err := h.hub.Subscribe(c.ClientIP())
	if err != nil {
		appErr := apperror.NewInternal(err).WithDetail("component", "broadcast")
		appErr.HTTPStatus = http.StatusServiceUnavailable
		h.Error(c, appErr)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader already answered with an HTTP error.
		logger.Debug(ctx, "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Clients only send control frames; reading drives pong and close handling.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		conn.SetReadLimit(maxClientMessage)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
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
		case ev, ok := <-sub.Events():
			if !ok {
				h.closeWith(conn, sub.Err())
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				logger.Warn(ctx, "event delivery failed", "seq", ev.Seq, "error", err)
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				return
			}

		case <-clientGone:
			return
		}
	}
}

// closeWith tells the client why the hub ended its subscription.
func (h *EventsHandler) closeWith(conn *websocket.Conn, reason error) {
	code, text := websocket.CloseNormalClosure, ""
	switch {
	case errors.Is(reason, broadcast.ErrSlowSubscriber):
		code, text = websocket.ClosePolicyViolation, "too slow, resync required"
	case errors.Is(reason, broadcast.ErrStopped):
		code, text = websocket.CloseGoingAway, "server shutting down"
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(h.writeTimeout))
}
