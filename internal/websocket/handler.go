package websocket

import (
	"context"
	"net/http"
	"strings"

	"cute-chat/internal/middleware"
	"cute-chat/internal/transport/httpdto"
	"cute-chat/internal/view"
	"cute-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades conversation requests and runs one Session per connection.
type Handler struct {
	base     view.Options
	hub      *Hub
	render   httpdto.BubbleRenderer
	limiter  SendLimiter
	presence Presence
	log      *logger.Logger
}

// NewHandler takes the view options shared by every connection; conversation, viewer and
// callbacks are filled in per connection. render and limiter may be nil.
func NewHandler(base view.Options, hub *Hub, render httpdto.BubbleRenderer, limiter SendLimiter, l *logger.Logger) *Handler {
	if l == nil {
		l = logger.Nop()
	}
	return &Handler{base: base, hub: hub, render: render, limiter: limiter, log: l}
}

// WithPresence makes every connection announce its viewer to p while open.
func (h *Handler) WithPresence(p Presence) *Handler {
	h.presence = p
	return h
}

func (h *Handler) Connect(c *gin.Context) {
	conversationID := strings.TrimSpace(c.Param("conversationId"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("conversation id is required", "INVALID_REQUEST"))
		return
	}
	viewer, ok := middleware.Viewer(c)
	if !ok {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("viewer_id is required", "INVALID_REQUEST"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Ctx(c.Request.Context()).Warnf("websocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, viewer.ID, conversationID)
	l := h.log.Ctx(c.Request.Context()).With(
		zap.String("client_id", client.ID),
		zap.String(string(logger.ConversationIdKey), conversationID),
	)

	session, err := NewSession(client, viewer, h.base, h.render, h.limiter, l)
	if err != nil {
		l.Errorf("create view: %v", err)
		client.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.hub.Register(client)
	defer h.hub.Unregister(client)
	go client.WriteLoop(ctx)

	if err := session.Start(); err != nil {
		l.Errorf("mount view: %v", err)
		client.SendFrame(httpdto.ErrorFrame("conversation unavailable", "SUBSCRIBE_FAILED"))
		session.Close()
		return
	}
	l.Infof("viewer connected")
	if h.presence != nil {
		go trackPresence(ctx, h.presence, client, l)
	}

	session.ReadLoop()
	session.Close()
	l.Infof("viewer disconnected")
}
